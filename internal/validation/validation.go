package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"mangalib/pkg/models"
)

// Endpoints with declared request rules.
const (
	EndpointRegister       = "auth/register"
	EndpointLogin          = "auth/login"
	EndpointUpdateProfile  = "users/profile"
	EndpointChangePassword = "users/change-password"
	EndpointCreateUser     = "users/manage/create"
	EndpointUpdateRole     = "users/manage/role"
	EndpointUploadBook     = "books/upload"
	EndpointUpdateBook     = "books/update"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

var (
	engineOnce sync.Once
	engine     *validator.Validate
)

// Engine returns the shared validator with the custom tags registered.
func Engine() *validator.Validate {
	engineOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		custom := map[string]validator.Func{
			"notblank": validators.NotBlank,
			"username": func(fl validator.FieldLevel) bool {
				return usernamePattern.MatchString(fl.Field().String())
			},
			"emailaddr": func(fl validator.FieldLevel) bool {
				return ValidateEmail(fl.Field().String())
			},
			"futuredate": func(fl validator.FieldLevel) bool {
				t, ok := ParseDate(fl.Field().String())
				return ok && t.After(time.Now())
			},
		}
		for tag, fn := range custom {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(fmt.Sprintf("validation: register %q: %v", tag, err))
			}
		}
		v.RegisterStructValidation(vipExpiryRequired, models.CreateUserRequest{}, models.UpdateRoleRequest{})
		engine = v
	})
	return engine
}

// vipExpiryRequired: a VIP role must come with an expiry date.
func vipExpiryRequired(sl validator.StructLevel) {
	var role, expires string
	switch req := sl.Current().Interface().(type) {
	case models.CreateUserRequest:
		role, expires = req.Role, req.VIPExpiresAt
	case models.UpdateRoleRequest:
		role, expires = req.Role, req.VIPExpiresAt
	default:
		return
	}
	if role == models.RoleVIP && strings.TrimSpace(expires) == "" {
		sl.ReportError(expires, "vipExpiresAt", "VIPExpiresAt", "required_vip", "")
	}
}

// ParseDate accepts RFC 3339 timestamps, with or without a zone, and
// plain dates.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func ValidateEmail(s string) bool { return emailPattern.MatchString(s) }

const minPasswordLen = 6

// PasswordError returns the rule message for a too-short password, or "".
func PasswordError(password string) string {
	if len([]rune(password)) < minPasswordLen {
		return "Password must be at least 6 characters"
	}
	return ""
}

// Result is the outcome of Validate. Errors holds one message per field.
type Result struct {
	Valid  bool
	Errors map[string]string
	order  []string
}

// Fields lists failing fields in declaration order.
func (r Result) Fields() []string { return append([]string(nil), r.order...) }

func (r *Result) add(field, msg string) {
	if _, ok := r.Errors[field]; ok {
		return
	}
	r.Errors[field] = msg
	r.order = append(r.order, field)
	r.Valid = false
}

// Validate checks req against the rules of endpoint. Unknown endpoints
// always pass.
func Validate(endpoint string, req any) Result {
	res := Result{Valid: true, Errors: map[string]string{}}
	msgs, ok := messages[endpoint]
	if !ok || req == nil {
		return res
	}

	err := Engine().Struct(req)
	if err == nil {
		return res
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		res.add("_", err.Error())
		return res
	}
	for _, fe := range fieldErrs {
		field := fe.Field()
		msg, ok := msgs[field]
		if !ok {
			msg = field + " is invalid"
		}
		res.add(field, msg)
	}
	return res
}

// FormatErrors joins the messages of r, one per line, in field order.
func FormatErrors(r Result) string {
	lines := make([]string, 0, len(r.order))
	for _, f := range r.order {
		lines = append(lines, r.Errors[f])
	}
	return strings.Join(lines, "\n")
}

// Error is a client-side rejection; the request never reached the network.
type Error struct {
	Endpoint string
	Result   Result
}

func (e *Error) Error() string { return FormatErrors(e.Result) }

// Check is Validate returning an *Error when the request is invalid.
func Check(endpoint string, req any) error {
	if res := Validate(endpoint, req); !res.Valid {
		return &Error{Endpoint: endpoint, Result: res}
	}
	return nil
}
