package response

import "github.com/gin-gonic/gin"

// AppError 带响应码与业务错误码的错误包装
type AppError struct {
	Code      int
	ErrorCode string
	Message   string
	Err       error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Data 响应 data 字段，未设置业务错误码时为空
func (e *AppError) Data() gin.H {
	if e == nil || e.ErrorCode == "" {
		return nil
	}
	return gin.H{"error_code": e.ErrorCode}
}

// WrapError 包装错误
func WrapError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapCodedError 包装带业务错误码的错误
func WrapCodedError(code int, errorCode, message string, err error) *AppError {
	appErr := WrapError(code, message, err)
	appErr.ErrorCode = errorCode
	return appErr
}
