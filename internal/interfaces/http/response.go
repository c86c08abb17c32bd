package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/garyjia/invoice-ai/internal/apperror"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// bindAndValidate decodes the JSON body into req and runs its validate tags.
// On failure it writes the error response and returns false.
func (h *Handlers) bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.respondError(c, apperror.Validation("Invalid request body"))
		return false
	}
	if err := validate.Struct(req); err != nil {
		h.respondError(c, apperror.Validation(validationMessage(err)))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("%s must have at least %s", fe.Field(), minUnit(fe))
	case "max":
		return fmt.Sprintf("%s must have at most %s", fe.Field(), minUnit(fe))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func minUnit(fe validator.FieldError) string {
	if fe.Kind() == reflect.String {
		return fe.Param() + " characters"
	}
	return fe.Param() + " entries"
}

// respondError writes {"status": code, "message": text} for err
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := apperror.StatusOf(err)
	message := apperror.MessageOf(err)

	fields := []zap.Field{
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", fields...)
	} else {
		h.logger.Warn("Request rejected", fields...)
	}

	c.AbortWithStatusJSON(status, gin.H{"status": status, "message": message})
}

// respondSuccess writes payload wrapped in the success envelope
func respondSuccess(c *gin.Context, code int, payload gin.H) {
	body := gin.H{"status": "success"}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(code, body)
}
