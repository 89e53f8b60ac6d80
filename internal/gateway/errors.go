package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/models"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

// errorBody maps an error to a status and a body carrying only the
// user-facing message.
func errorBody(err error) (int, models.ErrorResponse) {
	if errors.Is(err, ErrUnknownWizard) {
		return http.StatusNotFound, models.ErrorResponse{Error: "Wizard not found", Code: models.ErrCodeNotFound}
	}
	var we *wizard.Error
	if !errors.As(err, &we) {
		return http.StatusInternalServerError, models.ErrorResponse{Error: wizard.UserMessage(err), Code: models.ErrCodeInternalError}
	}
	body := models.ErrorResponse{Error: wizard.UserMessage(err)}
	switch we.Kind {
	case wizard.KindValidation:
		body.Code = models.ErrCodeValidationFailed
		return http.StatusUnprocessableEntity, body
	case wizard.KindIdentity:
		body.Code = models.ErrCodeUnauthorized
		return http.StatusUnauthorized, body
	case wizard.KindBusy:
		body.Code = models.ErrCodeBusy
		return http.StatusConflict, body
	case wizard.KindNavigation:
		body.Code = models.ErrCodeNavigation
		return http.StatusConflict, body
	case wizard.KindGeneration:
		body.Code = models.ErrCodeGenerationFailed
		return http.StatusBadGateway, body
	case wizard.KindPersistence:
		body.Code = models.ErrCodePersistenceFailed
		return http.StatusServiceUnavailable, body
	default:
		body.Code = models.ErrCodeInternalError
		return http.StatusInternalServerError, body
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, body)
}

func toCommand(req models.CommandRequest) (wizard.Command, error) {
	switch req.Type {
	case models.CommandEdit:
		if req.StepID == "" || req.Path == "" {
			return nil, fmt.Errorf("edit requires stepId and path")
		}
		return wizard.Edit{StepID: req.StepID, Path: req.Path, Value: req.Value}, nil
	case models.CommandAdvance:
		return wizard.Advance{}, nil
	case models.CommandBack:
		return wizard.Back{}, nil
	case models.CommandGoTo:
		if req.Index == nil {
			return nil, fmt.Errorf("goto requires index")
		}
		return wizard.GoTo{Index: *req.Index}, nil
	case models.CommandSubmit:
		return wizard.Submit{}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", req.Type)
	}
}
