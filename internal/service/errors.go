package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mealmitra/mealmitra-backend/internal/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthenticated   = errors.New("unauthenticated")
)

// ValidationError lists the request fields that were missing or malformed.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid or missing fields: " + strings.Join(e.Fields, ", ")
}

// InvalidTransitionError reports a status precondition that did not hold.
// It matches ErrInvalidTransition under errors.Is.
type InvalidTransitionError struct {
	ListingID string
	From      model.ListingStatus
	Action    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s listing %s while %s", e.Action, e.ListingID, e.From)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and folds failures into a
// ValidationError naming each offending field once.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	seen := map[string]bool{}
	ve := &ValidationError{}
	for _, fe := range verrs {
		name := fe.Field()
		if seen[name] {
			continue
		}
		seen[name] = true
		ve.Fields = append(ve.Fields, name)
	}
	return ve
}
