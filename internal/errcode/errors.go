package errcode

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError 表示输入缺失或格式错误（HTTP 400）。
type ValidationError struct {
	Reason  string
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Fields, ", "))
	}
	return e.Reason
}

// Code returns the numeric error code.
func (e *ValidationError) Code() int { return Validation }

// MissingFields builds the error returned when required scalar inputs are absent.
func MissingFields(fields ...string) *ValidationError {
	return &ValidationError{
		Reason:  ReasonMissingFields,
		Fields:  fields,
		Message: "Missing required fields: " + strings.Join(fields, ", "),
	}
}

// Invalid builds a ValidationError with an explicit reason and message.
func Invalid(reason, message string, fields ...string) *ValidationError {
	return &ValidationError{Reason: reason, Fields: fields, Message: message}
}

// ConflictError 表示同一 (job, email) 已存在申请（HTTP 409）。
// AppliedAt / Status 描述先前那次提交，便于前端提示用户。
type ConflictError struct {
	Message   string
	AppliedAt time.Time
	Status    string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

func (e *ConflictError) Code() int { return Conflict }

// NotFoundError 表示指定资源不存在（HTTP 404）。
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	name := e.Resource
	if name == "" {
		name = "resource"
	}
	// 首字母大写，与前端既有提示保持一致："Job not found"。
	return strings.ToUpper(name[:1]) + name[1:] + " not found"
}

func (e *NotFoundError) Code() int { return ResourceMissing }

// NotFound is a shorthand constructor.
func NotFound(resource string, id any) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}

// UnauthorizedError 表示会话缺失、失效或权限不足（HTTP 401）。
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "unauthorized"
}

func (e *UnauthorizedError) Code() int { return Unauthorized }
