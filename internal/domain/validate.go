package domain

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	passportNumberPattern = regexp.MustCompile(`^[0-9]{2}[A-Z0-9]{7}$`)
	bicPattern            = regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
	ibanShapePattern      = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]+$`)
)

// recordValidator is shared by every constructor. *validator.Validate is safe
// for concurrent use once its validators are registered.
var recordValidator = newRecordValidator()

// newRecordValidator creates the validator used by record constructors and
// registers the KYC-specific tags on it.
func newRecordValidator() *validator.Validate {
	v := validator.New()

	// Report fields under their JSON names, which is what extraction payloads use.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// An absent Date validates like a missing value so that "required" and
	// "omitempty" behave as they do for strings.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		d, ok := field.Interface().(Date)
		if !ok || d.IsZero() {
			return nil
		}
		return d.Time()
	}, Date{})

	mustRegister(v, "passportnum", func(fl validator.FieldLevel) bool {
		return passportNumberPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "bic", func(fl validator.FieldLevel) bool {
		return bicPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "ibanshape", func(fl validator.FieldLevel) bool {
		return ibanShapePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "sex", func(fl validator.FieldLevel) bool {
		switch Sex(fl.Field().String()) {
		case SexMale, SexFemale, SexUnspecified:
			return true
		}
		return false
	})
	mustRegister(v, "licensecategory", func(fl validator.FieldLevel) bool {
		return LicenseCategory(fl.Field().String()).Valid()
	})
	mustRegister(v, "prooftype", func(fl validator.FieldLevel) bool {
		return ProofType(fl.Field().String()).Valid()
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// validateRecord runs struct validation on a normalized record and converts
// the first failure into a *FormatError.
func validateRecord(kind Kind, rec interface{}) error {
	err := recordValidator.Struct(rec)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate %s: %w", kind, err)
	}

	fe := verrs[0]
	return NewFormatError(kind, fieldPath(fe), describeConstraint(fe), valueString(fe.Value()))
}

// fieldPath returns the JSON path of the failing field without the root
// struct name, e.g. "address.postal_code" or "categories[1]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// describeConstraint renders a validator tag as the expectation shown to
// users. Lengths are stated explicitly so the message names what was expected.
func describeConstraint(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "a value"
	case "len":
		return fmt.Sprintf("exactly %s characters", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("at most %s entries", fe.Param())
		}
		return fmt.Sprintf("at most %s characters", fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("at least %s entries", fe.Param())
		}
		return fmt.Sprintf("at least %s characters", fe.Param())
	case "alphanum":
		return "alphanumeric characters only"
	case "numeric":
		return "digits only"
	case "oneof":
		return "one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "passportnum":
		return "2 digits followed by 7 alphanumeric characters (9 characters)"
	case "bic":
		return "a BIC of exactly 8 or 11 characters"
	case "ibanshape":
		return "a two-letter country prefix followed by alphanumeric characters"
	case "sex":
		return "one of M, F, X"
	case "licensecategory":
		return "a license category (AM, A1, A2, A, B, BE, C1, C1E, C, CE, D1, D1E, D, DE)"
	case "prooftype":
		return "a proof of address type"
	default:
		return fe.Tag()
	}
}

func valueString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
