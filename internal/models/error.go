package models

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeBusy              = "OPERATION_IN_PROGRESS"
	ErrCodeNavigation        = "STEP_LOCKED"
	ErrCodePersistenceFailed = "SAVE_FAILED"
	ErrCodeGenerationFailed  = "GENERATION_FAILED"
	ErrCodeExportUnavailable = "EXPORT_UNAVAILABLE"
)
