package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"rocket-rental/internal/domain"
)

// ErrInvalidFormShape marks a request body that cannot be coerced into a
// ProfileForm. It aborts the request before validation or persistence.
var ErrInvalidFormShape = errors.New("invalid form shape")

// Profile form field names as they appear on the wire.
const (
	FieldName            = "name"
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldNewPassword     = "newPassword"
	FieldCurrentPassword = "currentPassword"
	FieldHostBio         = "hostBio"
	FieldRenterBio       = "renterBio"
	FieldPhone           = "phone"
	FieldAddress         = "address"
	FieldCity            = "city"
	FieldState           = "state"
	FieldZip             = "zip"
	FieldCountry         = "country"
)

// maxPasswordBytes is the longest input bcrypt will hash.
const maxPasswordBytes = 72

var requiredFormFields = map[string]bool{
	FieldName:     true,
	FieldUsername: true,
}

// ProfileForm is the strict record the profile form is coerced into.
type ProfileForm struct {
	Name            string `json:"name" validate:"min=1"`
	Username        string `json:"username" validate:"min=3"`
	Email           string `json:"email"`
	NewPassword     string `json:"newPassword" validate:"omitempty,min=8"`
	CurrentPassword string `json:"currentPassword" validate:"required_with=NewPassword"`
	HostBio         string `json:"hostBio"`
	RenterBio       string `json:"renterBio"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
	City            string `json:"city"`
	State           string `json:"state"`
	Zip             string `json:"zip"`
	Country         string `json:"country"`
}

func (f *ProfileForm) fields() map[string]*string {
	return map[string]*string{
		FieldName:            &f.Name,
		FieldUsername:        &f.Username,
		FieldEmail:           &f.Email,
		FieldNewPassword:     &f.NewPassword,
		FieldCurrentPassword: &f.CurrentPassword,
		FieldHostBio:         &f.HostBio,
		FieldRenterBio:       &f.RenterBio,
		FieldPhone:           &f.Phone,
		FieldAddress:         &f.Address,
		FieldCity:            &f.City,
		FieldState:           &f.State,
		FieldZip:             &f.Zip,
		FieldCountry:         &f.Country,
	}
}

// Contact returns the six address fields as a unit.
func (f ProfileForm) Contact() domain.ContactInfo {
	return domain.ContactInfo{
		Phone:   f.Phone,
		Address: f.Address,
		City:    f.City,
		State:   f.State,
		Zip:     f.Zip,
		Country: f.Country,
	}
}

// ProfileFormFromValues coerces url-encoded or multipart form values. Every
// field must carry a single text value; name and username must be present.
// Unknown keys are ignored.
func ProfileFormFromValues(values map[string][]string) (ProfileForm, error) {
	var form ProfileForm
	for name, dst := range form.fields() {
		vs, ok := values[name]
		if !ok {
			if requiredFormFields[name] {
				return ProfileForm{}, fmt.Errorf("%w: field %q is missing", ErrInvalidFormShape, name)
			}
			continue
		}
		if len(vs) != 1 {
			return ProfileForm{}, fmt.Errorf("%w: field %q must be a single value", ErrInvalidFormShape, name)
		}
		*dst = vs[0]
	}
	return form, nil
}

// ProfileFormFromMultipart coerces a multipart body. A file part under a
// known field name is a shape error.
func ProfileFormFromMultipart(form *multipart.Form) (ProfileForm, error) {
	if form == nil {
		return ProfileForm{}, fmt.Errorf("%w: empty multipart body", ErrInvalidFormShape)
	}
	var probe ProfileForm
	for name := range probe.fields() {
		if len(form.File[name]) > 0 {
			return ProfileForm{}, fmt.Errorf("%w: field %q must be text", ErrInvalidFormShape, name)
		}
	}
	return ProfileFormFromValues(form.Value)
}

// ProfileFormFromJSON coerces a decoded JSON object. Known fields must be strings.
func ProfileFormFromJSON(body map[string]any) (ProfileForm, error) {
	var form ProfileForm
	for name, dst := range form.fields() {
		raw, ok := body[name]
		if !ok {
			if requiredFormFields[name] {
				return ProfileForm{}, fmt.Errorf("%w: field %q is missing", ErrInvalidFormShape, name)
			}
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return ProfileForm{}, fmt.Errorf("%w: field %q must be text", ErrInvalidFormShape, name)
		}
		*dst = s
	}
	return form, nil
}

// ValidationErrors carries form-level and field-level messages.
type ValidationErrors struct {
	FormErrors  []string            `json:"formErrors"`
	FieldErrors map[string][]string `json:"fieldErrors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		FormErrors:  []string{},
		FieldErrors: map[string][]string{},
	}
}

func (v *ValidationErrors) AddForm(msg string) {
	v.FormErrors = append(v.FormErrors, msg)
}

func (v *ValidationErrors) AddField(field, msg string) {
	v.FieldErrors[field] = append(v.FieldErrors[field], msg)
}

// Empty reports whether the update may proceed to persistence.
func (v *ValidationErrors) Empty() bool {
	return len(v.FormErrors) == 0 && len(v.FieldErrors) == 0
}

// CredentialVerifier confirms a plaintext value against the stored credential.
type CredentialVerifier interface {
	VerifyPassword(ctx context.Context, userID int64, plaintext string) (bool, error)
}

// FieldValidator checks a ProfileForm against the per-field rules.
type FieldValidator struct {
	validate    *validator.Validate
	credentials CredentialVerifier
}

func NewFieldValidator(credentials CredentialVerifier) *FieldValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &FieldValidator{validate: v, credentials: credentials}
}

// Validate returns the accumulated errors for form as submitted by user. The
// credential verifier runs at most once, and only when a new password and the
// current password are both supplied. A non-nil error is an infrastructure
// fault, not a validation result.
func (fv *FieldValidator) Validate(ctx context.Context, user *domain.User, form ProfileForm) (*ValidationErrors, error) {
	errs := NewValidationErrors()

	if err := fv.validate.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, fmt.Errorf("run field rules: %w", err)
		}
		for _, fe := range fieldErrs {
			errs.AddField(fe.Field(), ruleMessage(fe))
		}
	}

	if len(form.NewPassword) > maxPasswordBytes {
		errs.AddField(FieldNewPassword, fmt.Sprintf("Must be at most %d bytes", maxPasswordBytes))
	}

	if email := normalizeEmail(form.Email); email != "" && user != nil && email != normalizeEmail(user.Email) {
		errs.AddField(FieldEmail, "Email cannot be changed")
	}

	if form.NewPassword != "" && form.CurrentPassword != "" {
		ok, err := fv.credentials.VerifyPassword(ctx, user.ID, form.CurrentPassword)
		if err != nil {
			return nil, fmt.Errorf("verify current password: %w", err)
		}
		if !ok {
			errs.AddField(FieldCurrentPassword, "Invalid password")
		}
	}

	return errs, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		if fe.Param() == "1" {
			return "Must be at least 1 character"
		}
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "required", "required_with":
		return "Required"
	default:
		return "Invalid value"
	}
}
