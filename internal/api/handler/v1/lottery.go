package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/jobshadow-api/internal/api/handler/v1/request"
	"github.com/vietanh2810/jobshadow-api/internal/api/handler/v1/response"
	"github.com/vietanh2810/jobshadow-api/internal/domain"
	"github.com/vietanh2810/jobshadow-api/internal/service"
)

type LotteryService interface {
	Start(ctx context.Context, adminID, eventID uint, opts service.StartOptions) (domain.LotteryJob, error)
	Status(ctx context.Context, jobID uint) (service.JobStatusView, error)
	ListJobs(ctx context.Context, eventID uint) ([]service.JobStatusView, error)
	Subscribe(ctx context.Context, jobID uint) (<-chan service.JobEvent, func(), error)
	Release(ctx context.Context, resultID uint) error
	Claim(ctx context.Context, jobID, studentID, positionID uint) (domain.LotteryResult, error)
}

type LotteryHandler struct {
	svc  LotteryService
	uSvc UserService
}

func NewLotteryHandler(svc LotteryService, uSvc UserService) *LotteryHandler {
	return &LotteryHandler{
		svc:  svc,
		uSvc: uSvc,
	}
}

// HandleStartLottery godoc
// @Summary      Start a lottery
// @Description  Freezes the event's data and queues a draw. Returns immediately; poll the job or open its websocket feed.
// @Tags         lottery
// @Accept       json
// @Produce      json
// @Param        eventID  path      int                          true  "Event ID"
// @Param        input    body      request.StartLotteryRequest  true  "Draw options"
// @Success      202      {object}  response.StartLotteryResponse
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      409      {object}  response.Err
// @Failure      503      {object}  response.Err
// @Router       /events/{eventID}/lottery [post]
// @Security BearerAuth
func (h *LotteryHandler) HandleStartLottery(ctx *gin.Context) {
	admin, respErr := requireAdmin(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseID(ctx, "eventID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.StartLotteryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	job, err := h.svc.Start(ctx.Request.Context(), admin.ID, eventID, service.StartOptions{
		GradeOrder: req.GradeOrder,
		Seed:       req.Seed,
	})
	if err != nil {
		response.RenderErr(ctx, serviceErr("v1.HandleStartLottery -> h.svc.Start", err))
		return
	}

	ctx.JSON(http.StatusAccepted, response.StartLotteryResponse{
		JobID:   job.ID,
		RunID:   job.RunID,
		EventID: job.EventID,
		Status:  job.Status,
		Seed:    job.Seed,
	})
}

// HandleGetJob godoc
// @Summary      Get a lottery job's status
// @Tags         lottery
// @Produce      json
// @Param        jobID  path      int  true  "Job ID"
// @Success      200    {object}  service.JobStatusView
// @Failure      401    {object}  response.Err
// @Failure      404    {object}  response.Err
// @Router       /lottery/jobs/{jobID} [get]
// @Security BearerAuth
func (h *LotteryHandler) HandleGetJob(ctx *gin.Context) {
	jobID, respErr := parseID(ctx, "jobID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	view, err := h.svc.Status(ctx.Request.Context(), jobID)
	if err != nil {
		response.RenderErr(ctx, serviceErr("v1.HandleGetJob -> h.svc.Status", err))
		return
	}

	ctx.JSON(http.StatusOK, view)
}

// HandleListJobs godoc
// @Summary      List an event's lottery jobs, newest first
// @Tags         lottery
// @Produce      json
// @Param        eventID  path      int  true  "Event ID"
// @Success      200      {array}   service.JobStatusView
// @Failure      401      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Router       /events/{eventID}/lottery/jobs [get]
// @Security BearerAuth
func (h *LotteryHandler) HandleListJobs(ctx *gin.Context) {
	eventID, respErr := parseID(ctx, "eventID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	views, err := h.svc.ListJobs(ctx.Request.Context(), eventID)
	if err != nil {
		response.RenderErr(ctx, serviceErr("v1.HandleListJobs -> h.svc.ListJobs", err))
		return
	}

	ctx.JSON(http.StatusOK, views)
}

// HandleClaim godoc
// @Summary      Assign a student after the draw
// @Description  Adds a manual result to a completed job when the position still has room.
// @Tags         lottery
// @Accept       json
// @Produce      json
// @Param        jobID  path      int                   true  "Job ID"
// @Param        input  body      request.ClaimRequest  true  "Student and position"
// @Success      201    {object}  domain.LotteryResult
// @Failure      400    {object}  response.Err
// @Failure      403    {object}  response.Err
// @Failure      404    {object}  response.Err
// @Failure      409    {object}  response.Err
// @Router       /lottery/jobs/{jobID}/results [post]
// @Security BearerAuth
func (h *LotteryHandler) HandleClaim(ctx *gin.Context) {
	if _, respErr := requireAdmin(ctx, h.uSvc); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	jobID, respErr := parseID(ctx, "jobID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.ClaimRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	result, err := h.svc.Claim(ctx.Request.Context(), jobID, req.StudentID, req.PositionID)
	if err != nil {
		response.RenderErr(ctx, serviceErr("v1.HandleClaim -> h.svc.Claim", err))
		return
	}

	ctx.JSON(http.StatusCreated, result)
}

// HandleRelease godoc
// @Summary      Release one assignment
// @Description  Deletes the result. The slot is not re-drawn.
// @Tags         lottery
// @Param        resultID  path  int  true  "Result ID"
// @Success      204
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Router       /lottery/results/{resultID} [delete]
// @Security BearerAuth
func (h *LotteryHandler) HandleRelease(ctx *gin.Context) {
	if _, respErr := requireAdmin(ctx, h.uSvc); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	resultID, respErr := parseID(ctx, "resultID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if err := h.svc.Release(ctx.Request.Context(), resultID); err != nil {
		response.RenderErr(ctx, serviceErr("v1.HandleRelease -> h.svc.Release", err))
		return
	}

	ctx.Status(http.StatusNoContent)
}
