package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/jobshadow-api/internal/api/handler/v1/response"
	"github.com/vietanh2810/jobshadow-api/internal/domain"
)

type ReportService interface {
	LatestJob(ctx context.Context, eventID uint) (domain.LotteryJob, error)
	Assignments(ctx context.Context, jobID uint) ([]domain.PositionAssignments, error)
	Unplaced(ctx context.Context, jobID uint) ([]domain.UnplacedStudent, error)
	Stats(ctx context.Context, jobID uint) (domain.LotteryStats, error)
}

type ReportHandler struct {
	svc ReportService
}

func NewReportHandler(svc ReportService) *ReportHandler {
	return &ReportHandler{
		svc: svc,
	}
}

// HandleGetAssignments godoc
// @Summary      Results grouped by position
// @Tags         reports
// @Produce      json
// @Param        jobID  path      int  true  "Job ID"
// @Success      200    {array}   domain.PositionAssignments
// @Failure      404    {object}  response.Err
// @Failure      409    {object}  response.Err
// @Router       /lottery/jobs/{jobID}/assignments [get]
// @Security BearerAuth
func (h *ReportHandler) HandleGetAssignments(ctx *gin.Context) {
	jobID, respErr := parseID(ctx, "jobID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	h.renderAssignments(ctx, jobID)
}

// HandleGetLatestAssignments godoc
// @Summary      Results of the event's latest completed draw
// @Tags         reports
// @Produce      json
// @Param        eventID  path      int  true  "Event ID"
// @Success      200      {array}   domain.PositionAssignments
// @Failure      404      {object}  response.Err
// @Router       /events/{eventID}/lottery/assignments [get]
// @Security BearerAuth
func (h *ReportHandler) HandleGetLatestAssignments(ctx *gin.Context) {
	eventID, respErr := parseID(ctx, "eventID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	job, err := h.svc.LatestJob(ctx.Request.Context(), eventID)
	if err != nil {
		response.RenderErr(ctx, serviceErr("v1.HandleGetLatestAssignments -> h.svc.LatestJob", err))
		return
	}

	h.renderAssignments(ctx, job.ID)
}

func (h *ReportHandler) renderAssignments(ctx *gin.Context, jobID uint) {
	groups, err := h.svc.Assignments(ctx.Request.Context(), jobID)
	if err != nil {
		response.RenderErr(ctx, serviceErr("v1.renderAssignments -> h.svc.Assignments", err))
		return
	}

	ctx.JSON(http.StatusOK, groups)
}

// HandleGetUnplaced godoc
// @Summary      Students without a result
// @Tags         reports
// @Produce      json
// @Param        jobID  path      int  true  "Job ID"
// @Success      200    {array}   domain.UnplacedStudent
// @Failure      404    {object}  response.Err
// @Failure      409    {object}  response.Err
// @Router       /lottery/jobs/{jobID}/unplaced [get]
// @Security BearerAuth
func (h *ReportHandler) HandleGetUnplaced(ctx *gin.Context) {
	jobID, respErr := parseID(ctx, "jobID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	students, err := h.svc.Unplaced(ctx.Request.Context(), jobID)
	if err != nil {
		response.RenderErr(ctx, serviceErr("v1.HandleGetUnplaced -> h.svc.Unplaced", err))
		return
	}

	ctx.JSON(http.StatusOK, students)
}

// HandleGetStats godoc
// @Summary      Placement counts by choice rank
// @Tags         reports
// @Produce      json
// @Param        jobID  path      int  true  "Job ID"
// @Success      200    {object}  domain.LotteryStats
// @Failure      404    {object}  response.Err
// @Failure      409    {object}  response.Err
// @Router       /lottery/jobs/{jobID}/stats [get]
// @Security BearerAuth
func (h *ReportHandler) HandleGetStats(ctx *gin.Context) {
	jobID, respErr := parseID(ctx, "jobID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	stats, err := h.svc.Stats(ctx.Request.Context(), jobID)
	if err != nil {
		response.RenderErr(ctx, serviceErr("v1.HandleGetStats -> h.svc.Stats", err))
		return
	}

	ctx.JSON(http.StatusOK, stats)
}
