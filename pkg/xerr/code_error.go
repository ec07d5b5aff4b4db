package xerr

import (
	"errors"
	"fmt"
)

// CodeError 自定义错误结构
type CodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (e *CodeError) Error() string {
	return fmt.Sprintf("Code: %d, Message: %s", e.Code, e.Message)
}

// New 创建新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Message: msg}
}

// 常用通用错误码
const (
	OK                  = 200
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	Conflict            = 409
	InternalServerError = 500
)

// 常用预定义错误
var (
	ErrSuccess      = New(OK, "Success")
	ErrServerError  = New(InternalServerError, "系统错误，请联系工作人员")
	ErrParam        = New(BadRequest, "参数错误")
	ErrUnauthorized = New(Unauthorized, "未登录或登录已失效")
	ErrForbidden    = New(Forbidden, "无权执行该操作")
)

// CodeOf 返回错误链上第一个 CodeError 的 code，非 CodeError 视为 500
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return InternalServerError
}

// Is 判断 err 是否为指定 code 的 CodeError
func Is(err error, code int) bool {
	if err == nil {
		return false
	}
	var ce *CodeError
	return errors.As(err, &ce) && ce.Code == code
}
