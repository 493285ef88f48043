package authflow

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

const (
	// codeLength is how many digits every one-time code carries
	codeLength = 6
	// minPasswordLength is the signup/reset floor
	minPasswordLength = 8
	// maxNationalDigits is the fixed national number length after the prefix
	maxNationalDigits = 10
	// DefaultPhonePrefix is the country-code prefix the phone input enforces
	DefaultPhonePrefix = "+91"
)

// LoginPayload is the login form
type LoginPayload struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// SignupPayload is the registration form. PhonePrefix is filled in by the
// flow before validation runs.
type SignupPayload struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Phone       string `json:"phone"`
	PhonePrefix string `json:"-"`
}

// Validate will validate the payload
func (r SignupPayload) Validate() error {
	prefix := r.PhonePrefix
	if prefix == "" {
		prefix = DefaultPhonePrefix
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, 100)),
		validation.Field(&r.Phone, validation.Required, validation.By(ValidatePhone(prefix))),
	)
}

// OTPPayload is a bare one-time code form
type OTPPayload struct {
	Code string `json:"code"`
}

// Validate will validate the payload
func (r OTPPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Code,
			validation.Required,
			validation.Length(codeLength, codeLength),
			is.Digit,
		),
	)
}

// ForgotPasswordPayload starts a reset round trip
type ForgotPasswordPayload struct {
	Email   string     `json:"email"`
	Channel OTPChannel `json:"channel"`
}

// Validate will validate the payload
func (r ForgotPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Channel,
			validation.Required,
			validation.In(ChannelEmail, ChannelSMS),
		),
	)
}

// ResetPasswordPayload finalizes a reset. All three fields must hold before
// submit is possible.
type ResetPasswordPayload struct {
	Code            string `json:"code"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate will validate the payload
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Code,
			validation.Required,
			validation.Length(codeLength, codeLength),
			is.Digit,
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(minPasswordLength, 100),
		),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// ValidatePhone enforces the fixed national format: the literal prefix
// followed by exactly ten digits, cross-checked against phone metadata.
func ValidatePhone(prefix string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if !strings.HasPrefix(s, prefix) {
			return fmt.Errorf("must start with %s", prefix)
		}
		national := s[len(prefix):]
		if len(national) != maxNationalDigits {
			return fmt.Errorf("must be %s followed by exactly %d digits", prefix, maxNationalDigits)
		}
		for _, r := range national {
			if r < '0' || r > '9' {
				return errors.New("only digits are allowed after the prefix")
			}
		}
		num, err := phonenumbers.Parse(s, "")
		if err != nil || !phonenumbers.IsValidNumber(num) {
			return errors.New("not a valid phone number")
		}
		return nil
	}
}

// NormalizePhoneInput applies the incremental phone input policy: the
// prefix is immutable, non-digit input after it is dropped, and digits
// beyond the fixed length are silently truncated.
func NormalizePhoneInput(prefix, raw string) string {
	if prefix == "" {
		prefix = DefaultPhonePrefix
	}

	rest := raw
	if strings.HasPrefix(raw, prefix) {
		rest = raw[len(prefix):]
	} else {
		// the caller clobbered the prefix; salvage any digits typed after
		// a partial or duplicated prefix
		rest = strings.TrimPrefix(strings.TrimLeft(rest, "+"), strings.TrimPrefix(prefix, "+"))
	}

	var b strings.Builder
	b.WriteString(prefix)
	n := 0
	for _, r := range rest {
		if r < '0' || r > '9' {
			continue
		}
		if n == maxNationalDigits {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// ValidationErrorMap flattens an ozzo validation error into field → message
// pairs for inline rendering.
func ValidationErrorMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verr validation.Errors
	if errors.As(err, &verr) {
		for field, ferr := range verr {
			if ferr != nil {
				out[strings.ToLower(field)] = ferr.Error()
			}
		}
		return out
	}

	out["form"] = err.Error()
	return out
}
