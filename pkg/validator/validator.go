// Package validator 基于 go-playground/validator 提供带中英文翻译的结构体校验。
package validator

import (
	stderrors "errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

const (
	LangEN = "en"
	LangZH = "zh"
)

// Validator 封装 validator.Validate 与翻译器。
type Validator struct {
	validate *validator.Validate
	trans    map[string]ut.Translator
}

var (
	global     *Validator
	globalOnce sync.Once
)

// Global 返回全局校验器。
func Global() *Validator {
	globalOnce.Do(func() { global = New() })
	return global
}

// New 创建校验器：字段名取 json 标签，并注册自定义规则。
func New() *Validator {
	v := &Validator{validate: validator.New(), trans: make(map[string]ut.Translator)}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())
	enTrans, _ := uni.GetTranslator(LangEN)
	_ = en_translations.RegisterDefaultTranslations(v.validate, enTrans)
	zhTrans, _ := uni.GetTranslator(LangZH)
	_ = zh_translations.RegisterDefaultTranslations(v.validate, zhTrans)
	v.trans[LangEN] = enTrans
	v.trans[LangZH] = zhTrans

	v.registerRules()
	return v
}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:\-]{1,128}$`)

func (v *Validator) registerRules() {
	v.register("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}, map[string]string{
		LangEN: "{0} must not be blank",
		LangZH: "{0}不能为空白",
	})

	v.register("session_id", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || sessionIDPattern.MatchString(s)
	}, map[string]string{
		LangEN: "{0} may only contain letters, digits, '_', '-', '.', ':' and be at most 128 characters",
		LangZH: "{0}只能包含字母、数字、'_'、'-'、'.'、':'，且不超过128个字符",
	})
}

func (v *Validator) register(tag string, fn validator.Func, messages map[string]string) {
	_ = v.validate.RegisterValidation(tag, fn)
	for lang, msg := range messages {
		trans, ok := v.trans[lang]
		if !ok {
			continue
		}
		msg := msg
		_ = v.validate.RegisterTranslation(tag, trans,
			func(t ut.Translator) error { return t.Add(tag, msg, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				s, _ := t.T(tag, fe.Field())
				return s
			},
		)
	}
}

// Validate 校验结构体，返回带翻译的错误；通过时返回 nil。
func (v *Validator) Validate(s interface{}, lang string) *ValidationErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return &ValidationErrors{Errors: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	trans, ok := v.trans[lang]
	if !ok {
		trans = v.trans[LangEN]
	}
	out := &ValidationErrors{Errors: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Errors = append(out.Errors, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: fe.Translate(trans),
		})
	}
	return out
}

// Struct 使用全局校验器校验。
func Struct(s interface{}, lang string) *ValidationErrors {
	return Global().Validate(s, lang)
}
