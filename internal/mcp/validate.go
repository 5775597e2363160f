package mcp

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// PackagesParams is the input of operations taking a package list.
type PackagesParams struct {
	Packages []string `json:"packages" jsonschema:"Debian package names, e.g. curl or libssl3:amd64. A version (curl=7.81.0-1) or release (curl/jammy-backports) may be pinned." validate:"required,min=1,dive,debpkg"`
}

// PackageParams is the input of operations taking a single package.
type PackageParams struct {
	Package string `json:"package" jsonschema:"Debian package name, e.g. curl." validate:"required,debpkg"`
}

// NoParams is the input of operations without arguments.
type NoParams struct{}

// packageName accepts a Debian package name with an optional architecture
// qualifier, followed by an optional =version or /release pin. Names never
// start with a dash, so they cannot be parsed as options.
var packageName = regexp.MustCompile(`^[a-z0-9][a-z0-9+.\-]*(:[a-z0-9\-]+)?(=[A-Za-z0-9.+:~\-]+|/[A-Za-z0-9.\-]+)?$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("debpkg", func(fl validator.FieldLevel) bool {
		return packageName.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks tool or CLI input against its validate tags.
func Validate(params any) error {
	err := validate.Struct(params)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "debpkg":
			msgs = append(msgs, fmt.Sprintf("%q is not a valid package name", fe.Value()))
		case "required", "min":
			msgs = append(msgs, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
