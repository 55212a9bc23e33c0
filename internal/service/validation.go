package service

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"requisiciones/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// decimal.Decimal is a struct; expose it as a float so gt/gte/required work.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// Report fields by their JSON names, which is what clients send.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

var tagMessages = map[string]string{
	"required": "es obligatorio",
	"gt":       "debe ser mayor que cero",
	"gte":      "no puede ser negativo",
	"oneof":    "no es un valor permitido",
	"min":      "es demasiado corto",
	"max":      "es demasiado largo",
}

// checkStruct runs the validate tags of req and collects failures into errs.
func checkStruct(req interface{}, errs fieldErrors) {
	err := validate.Struct(req)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.add("_", err.Error())
		return
	}
	for _, fe := range verrs {
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = "no es válido (" + fe.Tag() + ")"
		}
		errs.add(fe.Field(), msg)
	}
}

// minRunes checks a trimmed free-text field against a minimum length in characters.
func minRunes(errs fieldErrors, field, value string, min int) {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < min {
		errs.add(field, "debe tener al menos "+strconv.Itoa(min)+" caracteres")
	}
}

// requireApprover enforces that at least one committee role signed the decision.
func requireApprover(errs fieldErrors, rector, vicerrector, sindico bool) {
	if !rector && !vicerrector && !sindico {
		errs.add("aprobadores", "debe marcar al menos uno: rector, vicerrector o síndico")
	}
}

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   uuid.UUID
	Name string
	Role model.Role
}

func (a Actor) idPtr() *uuid.UUID {
	if a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}

func (a Actor) displayName() string {
	if a.Name != "" {
		return a.Name
	}
	if a.ID != uuid.Nil {
		return a.ID.String()
	}
	return "Sistema"
}
