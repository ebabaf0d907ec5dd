package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mwork/admin-console/internal/domain/rbac"
)

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
	// resource:action
	validate.RegisterValidation("permission", func(fl validator.FieldLevel) bool {
		return rbac.Permission(fl.Field().String()).Valid()
	})

	// canonical administrative role names only, no aliases
	validate.RegisterValidation("admin_role", func(fl validator.FieldLevel) bool {
		role := rbac.Role(fl.Field().String())
		return role.Valid() && rbac.IsAdminRole(role)
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s any) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			fields[field] = "This field is required"
		case "email":
			fields[field] = "Invalid email format"
		case "min":
			fields[field] = "Value is too short (min: " + e.Param() + ")"
		case "max":
			fields[field] = "Value is too long (max: " + e.Param() + ")"
		case "gt", "gte":
			fields[field] = "Value must be at least " + e.Param()
		case "lte":
			fields[field] = "Value must be at most " + e.Param()
		case "uuid":
			fields[field] = "Invalid identifier"
		case "permission":
			fields[field] = "Invalid permission. Must look like resource:action"
		case "admin_role":
			fields[field] = "Invalid admin role"
		default:
			fields[field] = "Invalid value"
		}
	}
	return fields
}
