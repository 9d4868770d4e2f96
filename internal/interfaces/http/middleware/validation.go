package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/interfaces/http/dto"
)

// Custom binding tags
const (
	// TagShipmentStatus accepts a canonical status in any letter case
	TagShipmentStatus = "shipment_status"
	// TagProvider accepts a known shipment source in any letter case
	TagProvider = "provider"
)

// SetupValidator names rejected fields by their json (or form) tag, teaches
// the validator to compare decimal amounts, and registers the shipment tags.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation(TagShipmentStatus, func(fl validator.FieldLevel) bool {
		return shipment.Status(strings.ToUpper(strings.TrimSpace(fl.Field().String()))).IsValid()
	})
	_ = v.RegisterValidation(TagProvider, func(fl validator.FieldLevel) bool {
		return shipment.Provider(strings.ToLower(strings.TrimSpace(fl.Field().String()))).IsValid()
	})
}

// FormatValidationErrors formats validation errors into a standard response
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: getValidationMessage(e),
			})
		}
	}

	return dto.NewValidationErrorResponse(
		"Request validation failed",
		requestID,
		details,
	)
}

// HandleValidationError returns a validation error response
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

// getValidationMessage covers the tags the request DTOs use.
func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "uuid":
		return "Invalid UUID format"
	case "min":
		return "Must be at least " + e.Param() + unit(e)
	case "max":
		return "Must be at most " + e.Param() + unit(e)
	case "gte":
		return "Must not be below " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case TagShipmentStatus:
		return "Unknown shipment status"
	case TagProvider:
		return "Unknown provider"
	default:
		return "Invalid value"
	}
}

func unit(e validator.FieldError) string {
	if e.Kind() == reflect.String {
		return " characters"
	}
	return ""
}
