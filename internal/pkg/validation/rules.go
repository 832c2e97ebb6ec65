package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sga/schoolhub/internal/app/models"
)

// Validation rule patterns
var (
	// Phone numbers: optional +, digits, spaces and dashes
	PhonePattern = `^\+?[0-9][0-9 \-]{6,19}$`

	// Password min length
	PasswordMinLength = 8
)

// CompiledPatterns caches compiled regex patterns
var CompiledPatterns = struct {
	Phone *regexp.Regexp
}{
	Phone: regexp.MustCompile(PhonePattern),
}

// rules maps custom tag names to their checks. All of them operate on string kinds.
var rules = map[string]func(string) bool{
	"role": func(s string) bool { return models.Role(s).Valid() },
	"student_status": func(s string) bool {
		return models.StudentStatus(s).Valid()
	},
	"attendance_status": func(s string) bool { return models.AttendanceStatus(s).Valid() },
	"payment_mode":      func(s string) bool { return models.PaymentMode(s).Valid() },
	"fee_frequency":     func(s string) bool { return models.FeeFrequency(s).Valid() },
	"announcement_type": func(s string) bool { return models.AnnouncementType(s).Valid() },
	"priority":          func(s string) bool { return models.Priority(s).Valid() },
	"phone":             CompiledPatterns.Phone.MatchString,
}

// Register adds the custom tags to v and makes field errors report json names.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonTagName)
	for tag, check := range rules {
		check := check
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.String {
				return false
			}
			return check(fl.Field().String())
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

// RegisterWithGin installs the custom tags on gin's default binding validator.
func RegisterWithGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return Register(v)
}

// New returns a standalone validator with the custom tags installed
func New() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// NewForBinding reads the `binding` struct tags gin uses, so services can
// re-check requests that did not come through a gin handler.
func NewForBinding() *validator.Validate {
	v := New()
	v.SetTagName("binding")
	return v
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// FieldError is one failed field in a request
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors flattens validator errors into field messages.
// It returns nil when err is not a validation error.
func FieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: Message(fe)})
	}
	return out
}

// Message creates a human-readable validation error message
func Message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "gt":
		return e.Field() + " must be greater than " + e.Param()
	case "gte":
		return e.Field() + " must be at least " + e.Param()
	case "email":
		return e.Field() + " must be a valid email address"
	case "datetime":
		return e.Field() + " must be a date in YYYY-MM-DD format"
	case "phone":
		return e.Field() + " must be a valid phone number"
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	case "eqfield":
		return e.Field() + " does not match"
	case "unique":
		return e.Field() + " must not contain duplicates"
	}
	if _, custom := rules[e.Tag()]; custom {
		return fmt.Sprintf("%s has an invalid value %v", e.Field(), e.Value())
	}
	return e.Field() + " validation failed: " + e.Tag()
}
