package v1

import (
	"errors"
	"fmt"

	"github.com/vietanh2810/jobshadow-api/internal/api/handler/v1/response"
	"github.com/vietanh2810/jobshadow-api/internal/jobrunner"
	"github.com/vietanh2810/jobshadow-api/internal/service"
)

var errAlreadyRunning = errors.New("a lottery is already running for this event")

var (
	notFoundErrs = []error{
		service.ErrEventNotFound,
		service.ErrJobNotFound,
		service.ErrResultNotFound,
		service.ErrPositionNotFound,
		service.ErrStudentNotFound,
		service.ErrCompanyNotFound,
		service.ErrManualAssignmentNotFound,
		service.ErrPrefillQuotaNotFound,
		service.ErrSnapshotNotFound,
	}
	conflictErrs = []error{
		service.ErrJobNotCompleted,
		service.ErrStudentAlreadyAssigned,
		service.ErrPositionFull,
	}
	badRequestErrs = []error{
		service.ErrInvalidGradeOrder,
		service.ErrInvalidSeed,
		service.ErrPositionNotInEvent,
		service.ErrPositionNotOffered,
		service.ErrStudentIneligible,
		service.ErrCompanyMismatch,
		service.ErrInvalidPercentage,
		service.ErrInvalidSlots,
	}
	unavailableErrs = []error{
		service.ErrQueueUnavailable,
		jobrunner.ErrQueueFull,
		jobrunner.ErrStopped,
	}
)

// serviceErr maps a service error onto its HTTP response. Anything
// unexpected becomes a 500 tagged with op.
func serviceErr(op string, err error) *response.Err {
	if errors.Is(err, service.ErrLotteryAlreadyRunning) {
		return response.ErrConflict(errAlreadyRunning)
	}
	if target := firstMatch(err, notFoundErrs); target != nil {
		return response.ErrResourceNotFound(target)
	}
	if target := firstMatch(err, conflictErrs); target != nil {
		return response.ErrConflict(target)
	}
	if target := firstMatch(err, badRequestErrs); target != nil {
		return response.ErrBadRequest(target)
	}
	if target := firstMatch(err, unavailableErrs); target != nil {
		return response.ErrUnavailable(err)
	}

	return response.ErrInternalServerError(fmt.Errorf("%s -> %w", op, err))
}

func firstMatch(err error, targets []error) error {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}
