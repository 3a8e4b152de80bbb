// This file contains the actual validator implementation for incoming http requests.
//
// Validation messages are translated to English and use the json names of the fields, e.g. "name is a required field".
// You can implement custom validators for each field in this file and reference them in the request structs.

package web

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/NeRF-or-Nothing/go-user-service/internal/common"
	"github.com/NeRF-or-Nothing/go-user-service/internal/models/user"
)

// ErrNotAnArray is returned when a bulk body is not a JSON array.
var ErrNotAnArray = errors.New("Body must be an array of users.")

var (
	validate *validator.Validate
	trans    ut.Translator
)

// Initialize the custom validator
func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterValidation("emailOrEmpty", validateEmailOrEmpty)

	english := en.New()
	trans, _ = ut.New(english, english).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		panic(fmt.Sprintf("failed to register validation translations: %v", err))
	}
	err := validate.RegisterTranslation("emailOrEmpty", trans,
		func(tr ut.Translator) error {
			return tr.Add("emailOrEmpty", "{0} must be a valid email address or empty", true)
		},
		func(tr ut.Translator, fe validator.FieldError) string {
			msg, _ := tr.T("emailOrEmpty", fe.Field())
			return msg
		},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to register validation translations: %v", err))
	}
}

// validateEmailOrEmpty accepts an e-mail address or the empty string, which clears the stored e-mail on update.
func validateEmailOrEmpty(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || validate.Var(value, "email") == nil
}

// ValidationError describes why a user payload was rejected.
// Index is the position in a bulk body, or -1 for single payloads.
type ValidationError struct {
	Index    int
	Messages []string
}

func (e *ValidationError) Error() string {
	msg := strings.Join(e.Messages, ", ")
	if e.Index >= 0 {
		return fmt.Sprintf("user at index %d failed validation: %s", e.Index, msg)
	}
	return "user validation failed: " + msg
}

// newValidationError converts err, usually validator.ValidationErrors, into a ValidationError.
func newValidationError(index int, err error) *ValidationError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Index: index, Messages: []string{err.Error()}}
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fe.Translate(trans))
	}
	return &ValidationError{Index: index, Messages: messages}
}

// ValidateRequest validates a request using a Fiber context and a request struct.
// It parses the request differently based on HTTP method. An empty body is treated as an empty object.
func ValidateRequest(c *fiber.Ctx, req interface{}) error {
	// Check the HTTP method
	method := c.Method()

	switch method {
	case fiber.MethodGet, fiber.MethodDelete:
		if err := c.QueryParser(req); err != nil {
			return err
		}
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
		if len(c.Body()) > 0 {
			if err := c.BodyParser(req); err != nil {
				return &ValidationError{Index: -1, Messages: []string{"malformed body: " + err.Error()}}
			}
		}
	default:
		// Unsupported HTTP method
	}

	if err := c.ParamsParser(req); err != nil {
		return err
	}

	if err := validate.Struct(req); err != nil {
		return newValidationError(-1, err)
	}
	return nil
}

// ParseUserBatch decodes and validates a bulk create body in order.
//
// It returns the users preceding the first element that could not be decoded or failed validation,
// together with a *ValidationError for that element. If the body is not a JSON array it returns ErrNotAnArray.
func ParseUserBatch(body []byte) ([]user.User, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrNotAnArray
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return nil, ErrNotAnArray
	}

	users := make([]user.User, 0, len(elements))
	for i, element := range elements {
		var req common.CreateUserRequest
		if err := json.Unmarshal(element, &req); err != nil {
			return users, &ValidationError{Index: i, Messages: []string{"malformed user: " + err.Error()}}
		}
		if err := validate.Struct(req); err != nil {
			return users, newValidationError(i, err)
		}
		users = append(users, req.ToUser())
	}
	return users, nil
}
