package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/jobshadow-api/internal/api/handler/v1/response"
	"github.com/vietanh2810/jobshadow-api/internal/api/middleware"
	"github.com/vietanh2810/jobshadow-api/internal/domain"
	"github.com/vietanh2810/jobshadow-api/internal/service"
)

var errNotAdmin = errors.New("only admins can change lottery data")

type UserService interface {
	GetUser(ctx context.Context, id uint) (domain.User, error)
}

type UserHandler struct {
	svc UserService
}

func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{
		svc: svc,
	}
}

// HandleGetMe godoc
// @Summary      Get the authenticated user
// @Tags         users
// @Produce      json
// @Success      200  {object}  domain.User
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /users/me [get]
// @Security BearerAuth
func (h *UserHandler) HandleGetMe(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.svc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	ctx.JSON(http.StatusOK, user)
}

func getUserFromContext(ctx *gin.Context, svc UserService) (domain.User, *response.Err) {
	userID := ctx.GetUint(middleware.ContextUserID)
	if userID == 0 {
		return domain.User{}, response.ErrUnauthorized(errors.New("no authenticated user"))
	}

	user, err := svc.GetUser(ctx.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return domain.User{}, response.ErrUnauthorized(err)
		}
		return domain.User{}, response.ErrInternalServerError(fmt.Errorf("getUserFromContext -> svc.GetUser -> %w", err))
	}

	return user, nil
}

func requireAdmin(ctx *gin.Context, svc UserService) (domain.User, *response.Err) {
	user, respErr := getUserFromContext(ctx, svc)
	if respErr != nil {
		return domain.User{}, respErr
	}
	if !user.IsAdmin() {
		return domain.User{}, response.ErrPermissionDenied(fmt.Errorf("user %d: %w", user.ID, errNotAdmin))
	}

	return user, nil
}

func parseID(ctx *gin.Context, name string) (uint, *response.Err) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || id == 0 {
		if err == nil {
			err = errors.New("must be positive")
		}
		return 0, response.ErrInvalidParam(name, err)
	}

	return uint(id), nil
}

// HandleHealthcheck godoc
// @Summary      Healthcheck
// @Tags         health
// @Produce      json
// @Success      200  {object}  response.HealthResponse
// @Router       / [get]
func HandleHealthcheck(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, response.HealthResponse{Status: "ok"})
}
