package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Payment method validation
	validate.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		method := fl.Field().String()
		validMethods := []string{"mobile_money", "bank_transfer", "cash", "card", "other"}
		for _, m := range validMethods {
			if method == m {
				return true
			}
		}
		return false
	})

	// Project category validation
	validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		category := fl.Field().String()
		validCategories := []string{
			"plumbing", "electrical", "masonry", "carpentry", "painting",
			"welding", "roofing", "tiling", "landscaping", "interior_design",
			"plastering", "metalwork", "glass_work", "flooring", "fencing",
			"renovation", "new_construction", "maintenance", "other",
		}
		for _, c := range validCategories {
			if category == c {
				return true
			}
		}
		return false
	})

	// Dispute severity validation
	validate.RegisterValidation("severity", func(fl validator.FieldLevel) bool {
		severity := fl.Field().String()
		validSeverities := []string{"low", "medium", "high", "critical", ""}
		for _, s := range validSeverities {
			if severity == s {
				return true
			}
		}
		return false
	})

	// Dispute category validation
	validate.RegisterValidation("dispute_category", func(fl validator.FieldLevel) bool {
		category := fl.Field().String()
		validCategories := []string{"payment", "quality", "timeline", "communication", "behavior", "safety", "other"}
		for _, c := range validCategories {
			if category == c {
				return true
			}
		}
		return false
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "email":
			errors[field] = "Invalid email format"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "payment_method":
			errors[field] = "Invalid payment method. Must be: mobile_money, bank_transfer, cash, card, or other"
		case "category":
			errors[field] = "Invalid project category"
		case "severity":
			errors[field] = "Invalid severity. Must be: low, medium, high, or critical"
		case "dispute_category":
			errors[field] = "Invalid dispute category"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
