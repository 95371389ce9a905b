package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/jobshadow-api/internal/api/middleware"
	"github.com/vietanh2810/jobshadow-api/internal/domain"
	"github.com/vietanh2810/jobshadow-api/internal/jobrunner"
	"github.com/vietanh2810/jobshadow-api/internal/service"
)

const (
	adminID = 1
	staffID = 2
)

type fakeUsers struct{}

func (fakeUsers) GetUser(_ context.Context, id uint) (domain.User, error) {
	switch id {
	case adminID:
		return domain.User{ID: adminID, Role: domain.RoleAdmin}, nil
	case staffID:
		return domain.User{ID: staffID, Role: domain.RoleStaff}, nil
	}
	return domain.User{}, service.ErrUserNotFound
}

type fakeLottery struct {
	startErr   error
	started    []service.StartOptions
	status     service.JobStatusView
	releaseErr error
	claimErr   error
}

func (f *fakeLottery) Start(_ context.Context, admin, eventID uint, opts service.StartOptions) (domain.LotteryJob, error) {
	if f.startErr != nil {
		return domain.LotteryJob{}, f.startErr
	}
	f.started = append(f.started, opts)
	return domain.LotteryJob{ID: 5, EventID: eventID, AdminID: admin, Status: domain.JobRunning, Seed: 99}, nil
}

func (f *fakeLottery) Status(_ context.Context, jobID uint) (service.JobStatusView, error) {
	if jobID != f.status.JobID {
		return service.JobStatusView{}, fmt.Errorf("s.repo.FindJobByID -> %w", service.ErrJobNotFound)
	}
	return f.status, nil
}

func (f *fakeLottery) ListJobs(context.Context, uint) ([]service.JobStatusView, error) {
	return []service.JobStatusView{f.status}, nil
}

func (f *fakeLottery) Subscribe(context.Context, uint) (<-chan service.JobEvent, func(), error) {
	return nil, nil, service.ErrJobNotFound
}

func (f *fakeLottery) Release(context.Context, uint) error {
	return f.releaseErr
}

func (f *fakeLottery) Claim(_ context.Context, jobID, studentID, positionID uint) (domain.LotteryResult, error) {
	if f.claimErr != nil {
		return domain.LotteryResult{}, f.claimErr
	}
	return domain.LotteryResult{ID: 1, JobID: jobID, StudentID: studentID, PositionID: positionID, Origin: domain.OriginManualPostHoc}, nil
}

type fakeSettings struct {
	SettingsService
	quotaErr error
}

func (f *fakeSettings) SetPrefillQuota(_ context.Context, eventID, positionID, companyID uint, slots, percentage int) (domain.PrefillQuota, error) {
	if f.quotaErr != nil {
		return domain.PrefillQuota{}, f.quotaErr
	}
	return domain.PrefillQuota{EventID: eventID, PositionID: positionID, CompanyID: companyID, Slots: slots, Percentage: percentage}, nil
}

func newTestRouter(userID uint, lottery *fakeLottery, settings *fakeSettings) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(ctx *gin.Context) {
		if userID != 0 {
			ctx.Set(middleware.ContextUserID, userID)
		}
		ctx.Next()
	})

	lh := NewLotteryHandler(lottery, fakeUsers{})
	r.POST("/events/:eventID/lottery", lh.HandleStartLottery)
	r.GET("/lottery/jobs/:jobID", lh.HandleGetJob)
	r.POST("/lottery/jobs/:jobID/results", lh.HandleClaim)
	r.DELETE("/lottery/results/:resultID", lh.HandleRelease)
	r.GET("/lottery/jobs/:jobID/ws", NewFeedHandler(lottery, nil).HandleJobFeed)

	sh := NewSettingsHandler(settings, fakeUsers{})
	r.PUT("/events/:eventID/prefill-quotas/:positionID", sh.HandlePutPrefillQuota)

	return r
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleStartLottery(t *testing.T) {
	tests := []struct {
		name       string
		userID     uint
		path       string
		body       any
		startErr   error
		wantStatus int
		wantBody   string
	}{
		{name: "accepted", userID: adminID, path: "/events/3/lottery", body: map[string]any{"grade_order": "DESCENDING"}, wantStatus: http.StatusAccepted},
		{name: "staff forbidden", userID: staffID, path: "/events/3/lottery", body: map[string]any{"grade_order": "NONE"}, wantStatus: http.StatusForbidden},
		{name: "no user", path: "/events/3/lottery", body: map[string]any{"grade_order": "NONE"}, wantStatus: http.StatusUnauthorized},
		{name: "bad grade order", userID: adminID, path: "/events/3/lottery", body: map[string]any{"grade_order": "RANDOM"}, wantStatus: http.StatusBadRequest},
		{name: "bad event id", userID: adminID, path: "/events/abc/lottery", body: map[string]any{"grade_order": "NONE"}, wantStatus: http.StatusBadRequest},
		{
			name: "already running", userID: adminID, path: "/events/3/lottery", body: map[string]any{"grade_order": "NONE"},
			startErr:   fmt.Errorf("s.repo.CreateJob -> %w", service.ErrLotteryAlreadyRunning),
			wantStatus: http.StatusConflict, wantBody: "a lottery is already running for this event",
		},
		{
			name: "unknown event", userID: adminID, path: "/events/3/lottery", body: map[string]any{"grade_order": "NONE"},
			startErr: service.ErrEventNotFound, wantStatus: http.StatusNotFound,
		},
		{name: "seed too large", userID: adminID, path: "/events/3/lottery", body: map[string]any{"grade_order": "NONE", "seed": int64(1) << 53}, wantStatus: http.StatusBadRequest},
		{name: "negative seed", userID: adminID, path: "/events/3/lottery", body: map[string]any{"grade_order": "NONE", "seed": -1}, wantStatus: http.StatusBadRequest},
		{
			name: "queue full", userID: adminID, path: "/events/3/lottery", body: map[string]any{"grade_order": "NONE"},
			startErr:   fmt.Errorf("s.queue.Submit -> %w", jobrunner.ErrQueueFull),
			wantStatus: http.StatusServiceUnavailable, wantBody: "try again later",
		},
		{
			name: "database down", userID: adminID, path: "/events/3/lottery", body: map[string]any{"grade_order": "NONE"},
			startErr: fmt.Errorf("dial tcp: connection refused"), wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lottery := &fakeLottery{startErr: tt.startErr}
			rec := do(newTestRouter(tt.userID, lottery, &fakeSettings{}), http.MethodPost, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			assert.NotContains(t, rec.Body.String(), "connection refused")
			assert.NotContains(t, rec.Body.String(), "->")
		})
	}
}

func TestHandleStartLottery_PassesSeed(t *testing.T) {
	lottery := &fakeLottery{}
	rec := do(newTestRouter(adminID, lottery, &fakeSettings{}), http.MethodPost, "/events/3/lottery",
		map[string]any{"grade_order": "ASCENDING", "seed": 42})

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"job_id":5,"run_id":"00000000-0000-0000-0000-000000000000","event_id":3,"status":"RUNNING","seed":99}`, rec.Body.String())
	require.Len(t, lottery.started, 1)
	require.NotNil(t, lottery.started[0].Seed)
	assert.Equal(t, int64(42), *lottery.started[0].Seed)
	assert.Equal(t, domain.GradeOrderAscending, lottery.started[0].GradeOrder)
}

func TestHandleGetJob(t *testing.T) {
	lottery := &fakeLottery{status: service.JobStatusView{JobID: 8, Status: domain.JobFailed, Message: service.FailedMessage}}
	r := newTestRouter(staffID, lottery, &fakeSettings{})

	rec := do(r, http.MethodGet, "/lottery/jobs/8", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view service.JobStatusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, domain.JobFailed, view.Status)
	assert.Equal(t, "lottery failed", view.Message)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/lottery/jobs/9", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/lottery/jobs/0", nil).Code)
}

func TestHandleReleaseAndClaim(t *testing.T) {
	lottery := &fakeLottery{}
	r := newTestRouter(adminID, lottery, &fakeSettings{})

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/lottery/results/4", nil).Code)

	lottery.releaseErr = service.ErrResultNotFound
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/lottery/results/4", nil).Code)

	rec := do(r, http.MethodPost, "/lottery/jobs/5/results", map[string]any{"student_id": 10, "position_id": 2})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), string(domain.OriginManualPostHoc))

	lottery.claimErr = fmt.Errorf("s.repo.CreateClaim -> %w", service.ErrPositionFull)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/lottery/jobs/5/results", map[string]any{"student_id": 10, "position_id": 2}).Code)

	lottery.claimErr = service.ErrStudentIneligible
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/lottery/jobs/5/results", map[string]any{"student_id": 10, "position_id": 2}).Code)

	lottery.claimErr = service.ErrPositionNotOffered
	rec = do(r, http.MethodPost, "/lottery/jobs/5/results", map[string]any{"student_id": 10, "position_id": 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "position is not published")

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/lottery/jobs/5/results", map[string]any{"student_id": 10}).Code)

	staff := newTestRouter(staffID, lottery, &fakeSettings{})
	assert.Equal(t, http.StatusForbidden, do(staff, http.MethodDelete, "/lottery/results/4", nil).Code)
}

func TestHandlePutPrefillQuota(t *testing.T) {
	settings := &fakeSettings{}
	r := newTestRouter(adminID, &fakeLottery{}, settings)

	rec := do(r, http.MethodPut, "/events/1/prefill-quotas/2", map[string]any{"slots": 4, "percentage": 50})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"percentage":50`)

	rec = do(r, http.MethodPut, "/events/1/prefill-quotas/2", map[string]any{"slots": 4, "percentage": 150})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	settings.quotaErr = service.ErrCompanyMismatch
	rec = do(r, http.MethodPut, "/events/1/prefill-quotas/2", map[string]any{"company_id": 9, "slots": 4, "percentage": 50})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), service.ErrCompanyMismatch.Error())
}

func TestHandleJobFeed_UnknownJob(t *testing.T) {
	r := newTestRouter(staffID, &fakeLottery{}, &fakeSettings{})

	rec := do(r, http.MethodGet, "/lottery/jobs/77/ws", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
