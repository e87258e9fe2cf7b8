package analyses

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidKind  = errors.New("validation: unsupported request_type")
	ErrInvalidImage = errors.New("validation: invalid image data")
)

const (
	ErrorCodeValidation  = "VALIDATION_ERROR"
	ErrorCodeProvider    = "PROVIDER_ERROR"
	ErrorCodeTimeout     = "PROVIDER_TIMEOUT"
	ErrorCodeStorage     = "STORAGE_ERROR"
	ErrorCodeInternal    = "INTERNAL_ERROR"
	ErrorCodePhotoFailed = "PHOTO_ANALYSIS_FAILED"
)
