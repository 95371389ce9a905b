package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
	"github.com/vietanh2810/jobshadow-api/internal/repository"
)

type fakeSettingsRepo struct {
	pins   map[uint]domain.ManualAssignment
	quotas map[uint]domain.PrefillQuota
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{
		pins:   map[uint]domain.ManualAssignment{},
		quotas: map[uint]domain.PrefillQuota{},
	}
}

func (f *fakeSettingsRepo) SaveManualAssignment(_ context.Context, pin domain.ManualAssignment) (domain.ManualAssignment, error) {
	pin.ID = pin.StudentID
	f.pins[pin.StudentID] = pin
	return pin, nil
}

func (f *fakeSettingsRepo) DeleteManualAssignment(_ context.Context, eventID, studentID uint) error {
	pin, ok := f.pins[studentID]
	if !ok || pin.EventID != eventID {
		return repository.ErrManualAssignmentNotFound
	}
	delete(f.pins, studentID)
	return nil
}

func (f *fakeSettingsRepo) FindManualAssignmentsByEvent(_ context.Context, eventID uint) ([]domain.ManualAssignment, error) {
	out := []domain.ManualAssignment{}
	for _, p := range f.pins {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeSettingsRepo) SavePrefillQuota(_ context.Context, quota domain.PrefillQuota) (domain.PrefillQuota, error) {
	quota.ID = quota.PositionID
	f.quotas[quota.PositionID] = quota
	return quota, nil
}

func (f *fakeSettingsRepo) DeletePrefillQuotasByCompany(_ context.Context, eventID, companyID uint) (int64, error) {
	var n int64
	for id, q := range f.quotas {
		if q.EventID == eventID && q.CompanyID == companyID {
			delete(f.quotas, id)
			n++
		}
	}
	if n == 0 {
		return 0, repository.ErrPrefillQuotaNotFound
	}
	return n, nil
}

func (f *fakeSettingsRepo) FindPrefillQuotasByEvent(_ context.Context, eventID uint) ([]domain.PrefillQuota, error) {
	out := []domain.PrefillQuota{}
	for _, q := range f.quotas {
		if q.EventID == eventID {
			out = append(out, q)
		}
	}
	return out, nil
}

func TestSettingsService_ManualAssignments(t *testing.T) {
	ctx := context.Background()
	repo := newFakeSettingsRepo()
	svc := NewSettingsService(repo, scenarioCatalog())

	pin, err := svc.AddManualAssignment(ctx, 1, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, uint(3), pin.PositionID)

	// A second pin replaces the first.
	_, err = svc.AddManualAssignment(ctx, 1, 10, 2)
	require.NoError(t, err)
	pins, err := svc.ListManualAssignments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pins, 1)
	assert.Equal(t, uint(2), pins[0].PositionID)

	// Graduated students may be pinned; the draw skips them.
	_, err = svc.AddManualAssignment(ctx, 1, 15, 2)
	require.NoError(t, err)

	_, err = svc.AddManualAssignment(ctx, 1, 10, 9)
	require.ErrorIs(t, err, ErrPositionNotInEvent)
	_, err = svc.AddManualAssignment(ctx, 1, 404, 2)
	require.ErrorIs(t, err, ErrStudentNotFound)
	_, err = svc.AddManualAssignment(ctx, 42, 10, 2)
	require.ErrorIs(t, err, ErrEventNotFound)

	require.NoError(t, svc.RemoveManualAssignment(ctx, 1, 10))
	require.ErrorIs(t, svc.RemoveManualAssignment(ctx, 1, 10), ErrManualAssignmentNotFound)
}

func TestSettingsService_SetPrefillQuota(t *testing.T) {
	tests := []struct {
		name       string
		positionID uint
		companyID  uint
		slots      int
		percentage int
		wantErr    error
	}{
		{name: "company from position", positionID: 1, slots: 2, percentage: 50},
		{name: "explicit company", positionID: 1, companyID: 100, slots: 2, percentage: 100},
		{name: "zero percent", positionID: 2, slots: 1, percentage: 0},
		{name: "percentage above 100", positionID: 1, slots: 2, percentage: 101, wantErr: ErrInvalidPercentage},
		{name: "negative percentage", positionID: 1, slots: 2, percentage: -1, wantErr: ErrInvalidPercentage},
		{name: "negative slots", positionID: 1, slots: -1, percentage: 50, wantErr: ErrInvalidSlots},
		{name: "wrong company", positionID: 1, companyID: 200, slots: 2, percentage: 50, wantErr: ErrCompanyMismatch},
		{name: "position of another event", positionID: 9, slots: 5, percentage: 50, wantErr: ErrPositionNotInEvent},
		{name: "unknown position", positionID: 404, slots: 5, percentage: 50, wantErr: ErrPositionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewSettingsService(newFakeSettingsRepo(), scenarioCatalog())

			quota, err := svc.SetPrefillQuota(context.Background(), 1, tt.positionID, tt.companyID, tt.slots, tt.percentage)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint(100), quota.CompanyID)
			assert.Equal(t, tt.percentage, quota.Percentage)
		})
	}
}

func TestSettingsService_RemovePrefillQuota(t *testing.T) {
	ctx := context.Background()
	repo := newFakeSettingsRepo()
	svc := NewSettingsService(repo, scenarioCatalog())

	_, err := svc.SetPrefillQuota(ctx, 1, 1, 0, 2, 50)
	require.NoError(t, err)
	_, err = svc.SetPrefillQuota(ctx, 1, 3, 0, 2, 100)
	require.NoError(t, err)

	_, err = svc.RemovePrefillQuota(ctx, 1, 200)
	require.ErrorIs(t, err, ErrCompanyNotFound)

	n, err := svc.RemovePrefillQuota(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	quotas, err := svc.ListPrefillQuotas(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, quotas)

	_, err = svc.RemovePrefillQuota(ctx, 1, 100)
	require.ErrorIs(t, err, ErrPrefillQuotaNotFound)
}
