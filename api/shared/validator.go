package shared

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/badoux/checkmail"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return checkmail.ValidateFormat(fl.Field().String()) == nil
	})
	v.RegisterValidation("dateparse", func(fl validator.FieldLevel) bool {
		_, err := ParseTime(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks the shape of a decoded request against its validate tags.
func Validate(request interface{}) error {
	err := validate.Struct(request)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(ErrInvalidPayload, err.Error())
	}

	var reasons []string
	for _, fieldErr := range validationErrors {
		reasons = append(reasons, fmt.Sprintf("'%s' failed on '%s'", fieldErr.Field(), fieldErr.Tag()))
	}
	return errors.Wrap(ErrInvalidPayload, strings.Join(reasons, ", "))
}

// DecodeJson decodes the request body into request and validates it.
func DecodeJson(r *http.Request, request interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		return errors.Wrap(ErrInvalidPayload, err.Error())
	}
	return Validate(request)
}

// ParseId accepts a version 4 uuid and returns its canonical form.
func ParseId(value string) (string, error) {
	id, err := uuid.Parse(value)
	if err != nil || id.Version() != 4 {
		return "", errors.Wrapf(ErrInvalidId, "'%s'", value)
	}
	return id.String(), nil
}

func ParseTime(value string) (time.Time, error) {
	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseDate keeps the calendar date only, at midnight UTC.
func ParseDate(value string) (time.Time, error) {
	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func IsNilOrEmpty(value *string) bool {
	return value == nil || *value == ""
}
