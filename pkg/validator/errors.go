package validator

import "strings"

// ValidationErrors 校验错误集合。
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// FieldError 单个字段的校验错误。
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}
	msgs := make([]string, len(v.Errors))
	for i, fe := range v.Errors {
		msgs[i] = fe.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// First 返回第一条错误消息。
func (v *ValidationErrors) First() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}
	return v.Errors[0].Message
}
