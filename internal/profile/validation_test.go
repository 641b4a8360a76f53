package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDisplayName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"one character", "a", false},
		{"two characters", "ab", true},
		{"fifty characters", strings.Repeat("x", 50), true},
		{"fifty one characters", strings.Repeat("x", 51), false},
		{"multibyte runes count once", strings.Repeat("é", 50), true},
		{"only spaces", "   ", false},
		{"free text", "Dana O'Neil", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := ValidateDisplayName(tt.input)
			if tt.valid {
				assert.Empty(t, msg)
			} else {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"letters digits period underscore", "da_ve.99", true},
		{"two characters", "ab", true},
		{"thirty characters", strings.Repeat("a", 30), true},
		{"one character", "a", false},
		{"thirty one characters", strings.Repeat("a", 31), false},
		{"contains a space", "da ve", false},
		{"contains a dash", "da-ve", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := ValidateUsername(tt.input)
			if tt.valid {
				assert.Empty(t, msg)
			} else {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestValidateBio(t *testing.T) {
	assert.Empty(t, ValidateBio(""))
	assert.Empty(t, ValidateBio(strings.Repeat("b", 160)))
	assert.Equal(t, "bio must be at most 160 characters", ValidateBio(strings.Repeat("b", 161)))
}

func TestValidAvatarRef(t *testing.T) {
	tests := []struct {
		ref   string
		valid bool
	}{
		{DefaultAvatar, true},
		{"preset_vinyl", true},
		{"preset_neon-2", true},
		{"preset_", false},
		{"Preset_vinyl", false},
		{"https://cdn.example.com/a.png", true},
		{"http://cdn.example.com/a.png", true},
		{"ftp://cdn.example.com/a.png", false},
		{"/relative/a.png", false},
		{"https://", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidAvatarRef(tt.ref))
		})
	}
}

func TestValidateAvatarRefLength(t *testing.T) {
	prefix := "https://cdn.example.com/"
	longest := prefix + strings.Repeat("a", AvatarRefMax-len(prefix))

	assert.Empty(t, ValidateAvatarRef(longest))
	assert.Equal(t, "avatar must be at most 2048 characters", ValidateAvatarRef(longest+"a"))
}

func TestValidateCreate(t *testing.T) {
	errs := ValidateCreate(CreateInput{Username: "ok_name", DisplayName: "Okay"})
	assert.Nil(t, errs)

	errs = ValidateCreate(CreateInput{Username: "bad name", DisplayName: "x", AvatarRef: "nope"})
	assert.Len(t, errs, 3)
	assert.Contains(t, errs, "username")
	assert.Contains(t, errs, "display_name")
	assert.Contains(t, errs, "avatar_ref")
}

func TestValidatePatch(t *testing.T) {
	assert.Nil(t, ValidatePatch(Patch{}))

	bio := strings.Repeat("b", 161)
	name := "Fine Name"
	errs := ValidatePatch(Patch{Bio: &bio, DisplayName: &name})
	assert.Equal(t, FieldErrors{"bio": "bio must be at most 160 characters"}, errs)
}

func TestFieldErrorsMessageIsSorted(t *testing.T) {
	errs := FieldErrors{"username": "u", "bio": "b"}
	assert.Equal(t, "bio: b; username: u", errs.Error())
}
