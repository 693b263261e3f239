package services

import "fmt"

// 稳定的机器可读错误码，协作方据此分支，文案可能变化。
const (
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeQuotaExceeded    = "QUOTA_EXCEEDED"
	CodeUnknownType      = "UNKNOWN_TYPE"
	CodeInvalidID        = "INVALID_ID"
	CodeIDExists         = "ID_EXISTS"
	CodeNotFound         = "NOT_FOUND"
	CodeForbidden        = "FORBIDDEN"
	CodeDownloadLimit    = "DOWNLOAD_LIMIT"
	CodeRateLimited      = "RATE_LIMITED"
	CodeGenerationFailed = "GENERATION_FAILED"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeInternal         = "INTERNAL"
)

type AppError struct {
	Code     string
	HTTPCode int
	Message  string
	Data     interface{}
	Err      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newAppError(code string, httpCode int, message string, err error) *AppError {
	return &AppError{Code: code, HTTPCode: httpCode, Message: message, Err: err}
}

func newAppErrorWithData(code string, httpCode int, message string, data interface{}, err error) *AppError {
	return &AppError{Code: code, HTTPCode: httpCode, Message: message, Data: data, Err: err}
}
