package profile

import (
	"errors"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	UsernameMin    = 2
	UsernameMax    = 30
	DisplayNameMin = 2
	DisplayNameMax = 50
	BioMax         = 160
	AvatarRefMax   = 2048
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._]+$`)
	presetPattern   = regexp.MustCompile(`^preset_[a-z0-9_-]+$`)

	validate = newValidator()
)

const (
	usernameTag    = "min=2,max=30,username"
	displayNameTag = "min=2,max=50,notblank"
	bioTag         = "max=160"
	avatarTag      = "max=2048,avatar"
)

var messages = map[string]map[string]string{
	"username": {
		"min":      "username must be at least 2 characters",
		"max":      "username must be at most 30 characters",
		"username": "username may only contain letters, numbers, periods and underscores",
	},
	"display_name": {
		"min":      "name must be at least 2 characters",
		"max":      "name must be at most 50 characters",
		"notblank": "name must not be blank",
	},
	"bio": {
		"max": "bio must be at most 160 characters",
	},
	"avatar_ref": {
		"max":    "avatar must be at most 2048 characters",
		"avatar": "avatar must be default_avatar, a preset or an absolute URL",
	},
}

// FieldErrors maps a field name to a message meant to be shown next to that
// field.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e[k]
	}
	return strings.Join(parts, "; ")
}

func (e FieldErrors) Fields() map[string]string {
	return e
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("avatar", func(fl validator.FieldLevel) bool {
		return ValidAvatarRef(fl.Field().String())
	})
	return v
}

// ValidAvatarRef accepts the default avatar, a preset key or an absolute
// http(s) URL.
func ValidAvatarRef(ref string) bool {
	if ref == DefaultAvatar || presetPattern.MatchString(ref) {
		return true
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func ValidateUsername(username string) string {
	return check("username", username, usernameTag)
}

func ValidateDisplayName(name string) string {
	return check("display_name", name, displayNameTag)
}

func ValidateBio(bio string) string {
	return check("bio", bio, bioTag)
}

func ValidateAvatarRef(ref string) string {
	return check("avatar_ref", ref, avatarTag)
}

func ValidateCreate(in CreateInput) FieldErrors {
	errs := FieldErrors{}
	errs.add("username", ValidateUsername(in.Username))
	errs.add("display_name", ValidateDisplayName(in.DisplayName))
	errs.add("bio", ValidateBio(in.Bio))
	if in.AvatarRef != "" {
		errs.add("avatar_ref", ValidateAvatarRef(in.AvatarRef))
	}
	return errs.orNil()
}

func ValidatePatch(p Patch) FieldErrors {
	errs := FieldErrors{}
	if p.Username != nil {
		errs.add("username", ValidateUsername(*p.Username))
	}
	if p.DisplayName != nil {
		errs.add("display_name", ValidateDisplayName(*p.DisplayName))
	}
	if p.Bio != nil {
		errs.add("bio", ValidateBio(*p.Bio))
	}
	if p.AvatarRef != nil {
		errs.add("avatar_ref", ValidateAvatarRef(*p.AvatarRef))
	}
	return errs.orNil()
}

// check runs the tag against value and returns the message of the first
// failing rule, or "" when value is valid.
func check(field string, value string, tag string) string {
	err := validate.Var(value, tag)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := messages[field][verrs[0].Tag()]; ok {
			return msg
		}
	}
	return field + " is invalid"
}

func (e FieldErrors) add(field, msg string) {
	if msg != "" {
		e[field] = msg
	}
}

func (e FieldErrors) orNil() FieldErrors {
	if len(e) == 0 {
		return nil
	}
	return e
}
