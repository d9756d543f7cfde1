package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type credentialsForm struct {
	Username string `form:"username" validate:"required,max=100"`
	Password string `form:"password" validate:"required,max=72"`
}

type transactionForm struct {
	Amount          string `form:"amount" validate:"required"`
	Category        string `form:"category" validate:"required,number"`
	Account         string `form:"account" validate:"required,number"`
	Description     string `form:"description" validate:"max=200"`
	Timestamp       string `form:"timestamp"`
	TransactionType string `form:"transaction_type" validate:"required,oneof=income expense"`
}

type accountForm struct {
	Name           string `form:"name" validate:"required,max=100"`
	InitialBalance string `form:"initial_balance" validate:"required"`
}

type categoryForm struct {
	Name         string `form:"name" validate:"required,max=100"`
	CategoryType string `form:"category_type" validate:"required,oneof=income expense"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	return v
}

// bindForm fills the string fields of dst from the request form using their
// form tags, then validates dst.
func (h *Handlers) bindForm(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return errors.New("invalid form submission")
	}

	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Tag.Get("form")
		if name == "" || v.Field(i).Kind() != reflect.String {
			continue
		}
		value := r.PostFormValue(name)
		if name != "password" {
			value = strings.TrimSpace(value)
		}
		v.Field(i).SetString(value)
	}

	if err := h.validate.Struct(dst); err != nil {
		return describeValidation(err)
	}
	return nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "max":
		return fmt.Errorf("%s must be at most %s characters", field, fe.Param())
	case "number":
		return fmt.Errorf("%s must be a number", field)
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", field, fe.Param())
	}
	return fmt.Errorf("%s is invalid", field)
}
