package validation

import (
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// SlugAlphabet is the character set negotiation slugs are drawn from.
const SlugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var (
	validate *validator.Validate
	once     sync.Once
)

// Get returns the singleton validator instance
func Get() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
			return fld.Name
		})

		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.String {
				return false
			}
			return strings.TrimSpace(fl.Field().String()) != ""
		})

		_ = validate.RegisterValidation("http_url", func(fl validator.FieldLevel) bool {
			u, ok := parseHTTPURL(fl)
			return ok && u != nil
		})

		// origin is scheme://host[:port] with nothing after it, the form browsers
		// send in the Origin header and expect back in Access-Control-Allow-Origin.
		_ = validate.RegisterValidation("origin", func(fl validator.FieldLevel) bool {
			u, ok := parseHTTPURL(fl)
			if !ok {
				return false
			}
			return (u.Path == "" || u.Path == "/") && u.RawQuery == "" && u.Fragment == "" && u.User == nil
		})

		_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.String {
				return false
			}
			return IsSlug(fl.Field().String())
		})
	})
	return validate
}

// Validate validates a struct and returns an error if invalid
func Validate(s any) error {
	return Get().Struct(s)
}

// Var validates a single value against a tag expression such as "slug,len=8".
func Var(v any, tag string) error {
	return Get().Var(v, tag)
}

// IsSlug reports whether s is non-empty and uses only the slug alphabet.
func IsSlug(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune(SlugAlphabet, c) {
			return false
		}
	}
	return true
}

func parseHTTPURL(fl validator.FieldLevel) (*url.URL, bool) {
	if fl.Field().Kind() != reflect.String {
		return nil, false
	}
	raw := strings.TrimSpace(fl.Field().String())
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if strings.TrimSpace(u.Host) == "" {
		return nil, false
	}
	return u, true
}
