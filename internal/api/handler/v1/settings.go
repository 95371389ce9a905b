package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/jobshadow-api/internal/api/handler/v1/request"
	"github.com/vietanh2810/jobshadow-api/internal/api/handler/v1/response"
	"github.com/vietanh2810/jobshadow-api/internal/domain"
)

type SettingsService interface {
	AddManualAssignment(ctx context.Context, eventID, studentID, positionID uint) (domain.ManualAssignment, error)
	RemoveManualAssignment(ctx context.Context, eventID, studentID uint) error
	ListManualAssignments(ctx context.Context, eventID uint) ([]domain.ManualAssignment, error)
	SetPrefillQuota(ctx context.Context, eventID, positionID, companyID uint, slots, percentage int) (domain.PrefillQuota, error)
	RemovePrefillQuota(ctx context.Context, eventID, companyID uint) (int64, error)
	ListPrefillQuotas(ctx context.Context, eventID uint) ([]domain.PrefillQuota, error)
}

type SettingsHandler struct {
	svc  SettingsService
	uSvc UserService
}

func NewSettingsHandler(svc SettingsService, uSvc UserService) *SettingsHandler {
	return &SettingsHandler{
		svc:  svc,
		uSvc: uSvc,
	}
}

// HandlePutManualAssignment godoc
// @Summary      Pin a student to a position
// @Description  Replaces the student's existing pin. Applies to the next draw only.
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        eventID    path      int                              true  "Event ID"
// @Param        studentID  path      int                              true  "Student ID"
// @Param        input      body      request.ManualAssignmentRequest  true  "Position"
// @Success      200        {object}  domain.ManualAssignment
// @Failure      400        {object}  response.Err
// @Failure      403        {object}  response.Err
// @Failure      404        {object}  response.Err
// @Router       /events/{eventID}/manual-assignments/{studentID} [put]
// @Security BearerAuth
func (h *SettingsHandler) HandlePutManualAssignment(ctx *gin.Context) {
	if _, respErr := requireAdmin(ctx, h.uSvc); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseID(ctx, "eventID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	studentID, respErr := parseID(ctx, "studentID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.ManualAssignmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	pin, err := h.svc.AddManualAssignment(ctx.Request.Context(), eventID, studentID, req.PositionID)
	if err != nil {
		response.RenderErr(ctx, serviceErr("v1.HandlePutManualAssignment -> h.svc.AddManualAssignment", err))
		return
	}

	ctx.JSON(http.StatusOK, pin)
}

// HandleDeleteManualAssignment godoc
// @Summary      Remove a student's pin
// @Tags         settings
// @Param        eventID    path  int  true  "Event ID"
// @Param        studentID  path  int  true  "Student ID"
// @Success      204
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Router       /events/{eventID}/manual-assignments/{studentID} [delete]
// @Security BearerAuth
func (h *SettingsHandler) HandleDeleteManualAssignment(ctx *gin.Context) {
	if _, respErr := requireAdmin(ctx, h.uSvc); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseID(ctx, "eventID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	studentID, respErr := parseID(ctx, "studentID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if err := h.svc.RemoveManualAssignment(ctx.Request.Context(), eventID, studentID); err != nil {
		response.RenderErr(ctx, serviceErr("v1.HandleDeleteManualAssignment -> h.svc.RemoveManualAssignment", err))
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleListManualAssignments godoc
// @Summary      List an event's pins
// @Tags         settings
// @Produce      json
// @Param        eventID  path      int  true  "Event ID"
// @Success      200      {array}   domain.ManualAssignment
// @Failure      404      {object}  response.Err
// @Router       /events/{eventID}/manual-assignments [get]
// @Security BearerAuth
func (h *SettingsHandler) HandleListManualAssignments(ctx *gin.Context) {
	eventID, respErr := parseID(ctx, "eventID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	pins, err := h.svc.ListManualAssignments(ctx.Request.Context(), eventID)
	if err != nil {
		response.RenderErr(ctx, serviceErr("v1.HandleListManualAssignments -> h.svc.ListManualAssignments", err))
		return
	}

	ctx.JSON(http.StatusOK, pins)
}

// HandlePutPrefillQuota godoc
// @Summary      Reserve a share of a position for its top choosers
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        eventID     path      int                          true  "Event ID"
// @Param        positionID  path      int                          true  "Position ID"
// @Param        input       body      request.PrefillQuotaRequest  true  "Quota"
// @Success      200         {object}  domain.PrefillQuota
// @Failure      400         {object}  response.Err
// @Failure      403         {object}  response.Err
// @Failure      404         {object}  response.Err
// @Router       /events/{eventID}/prefill-quotas/{positionID} [put]
// @Security BearerAuth
func (h *SettingsHandler) HandlePutPrefillQuota(ctx *gin.Context) {
	if _, respErr := requireAdmin(ctx, h.uSvc); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseID(ctx, "eventID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	positionID, respErr := parseID(ctx, "positionID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.PrefillQuotaRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	quota, err := h.svc.SetPrefillQuota(ctx.Request.Context(), eventID, positionID, req.CompanyID, req.Slots, req.Percentage)
	if err != nil {
		response.RenderErr(ctx, serviceErr("v1.HandlePutPrefillQuota -> h.svc.SetPrefillQuota", err))
		return
	}

	ctx.JSON(http.StatusOK, quota)
}

// HandleDeleteCompanyPrefillQuotas godoc
// @Summary      Remove every prefill quota of a company
// @Tags         settings
// @Produce      json
// @Param        eventID    path      int  true  "Event ID"
// @Param        companyID  path      int  true  "Company ID"
// @Success      200        {object}  response.RemovedResponse
// @Failure      403        {object}  response.Err
// @Failure      404        {object}  response.Err
// @Router       /events/{eventID}/companies/{companyID}/prefill-quotas [delete]
// @Security BearerAuth
func (h *SettingsHandler) HandleDeleteCompanyPrefillQuotas(ctx *gin.Context) {
	if _, respErr := requireAdmin(ctx, h.uSvc); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, respErr := parseID(ctx, "eventID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	companyID, respErr := parseID(ctx, "companyID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	n, err := h.svc.RemovePrefillQuota(ctx.Request.Context(), eventID, companyID)
	if err != nil {
		response.RenderErr(ctx, serviceErr("v1.HandleDeleteCompanyPrefillQuotas -> h.svc.RemovePrefillQuota", err))
		return
	}

	ctx.JSON(http.StatusOK, response.RemovedResponse{Removed: n})
}

// HandleListPrefillQuotas godoc
// @Summary      List an event's prefill quotas
// @Tags         settings
// @Produce      json
// @Param        eventID  path      int  true  "Event ID"
// @Success      200      {array}   domain.PrefillQuota
// @Failure      404      {object}  response.Err
// @Router       /events/{eventID}/prefill-quotas [get]
// @Security BearerAuth
func (h *SettingsHandler) HandleListPrefillQuotas(ctx *gin.Context) {
	eventID, respErr := parseID(ctx, "eventID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	quotas, err := h.svc.ListPrefillQuotas(ctx.Request.Context(), eventID)
	if err != nil {
		response.RenderErr(ctx, serviceErr("v1.HandleListPrefillQuotas -> h.svc.ListPrefillQuotas", err))
		return
	}

	ctx.JSON(http.StatusOK, quotas)
}
