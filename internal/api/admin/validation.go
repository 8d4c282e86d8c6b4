package admin

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"acessonucleo-hub/internal/domain/plans"
	"acessonucleo-hub/internal/domain/subscribers"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the `plano` and `status` tags to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("plano", func(fl validator.FieldLevel) bool {
			_, err := plans.Parse(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
			return subscribers.Status(fl.Field().String()).Valid()
		})
	})
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return "corpo da requisição inválido"
	}

	var msgs []string
	for _, fe := range errs {
		switch fe.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("campo %s é obrigatório", fe.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("campo %s deve ser um email válido", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("campo %s excede %s caracteres", fe.Field(), fe.Param()))
		case "plano":
			msgs = append(msgs, fmt.Sprintf("plano inválido: %v", fe.Value()))
		case "status":
			msgs = append(msgs, fmt.Sprintf("status inválido: %v", fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("campo %s é inválido", fe.Field()))
		}
	}
	return strings.Join(msgs, ", ")
}
