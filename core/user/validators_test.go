package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/assets"
	"github.com/trezcool/ratiba/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	LoadCommonPasswords(assets.FS, assets.CommonPasswordsFile, nopLogger{})
	return validate
}

func TestNewUserValidation(t *testing.T) {
	validate := newValidator()

	tests := []struct {
		name      string
		nu        NewUser
		wantField string
		wantTag   string
	}{
		{
			name: "valid",
			nu:   NewUser{FirstName: "Ada", LastName: "Lovelace", Email: "ada@test.cd", Password: "Kx9#mPq2!z"},
		},
		{
			name:      "too short",
			nu:        NewUser{FirstName: "Ada", LastName: "Lovelace", Email: "ada@test.cd", Password: "Ab1!"},
			wantField: "password", wantTag: pwdMinLenTag,
		},
		{
			name:      "whitespace",
			nu:        NewUser{FirstName: "Ada", LastName: "Lovelace", Email: "ada@test.cd", Password: "Abcd 1234!"},
			wantField: "password", wantTag: pwdNoSpaceTag,
		},
		{
			name:      "all numeric",
			nu:        NewUser{FirstName: "Ada", LastName: "Lovelace", Email: "ada@test.cd", Password: "1234567890"},
			wantField: "password", wantTag: pwdNotAllNumTag,
		},
		{
			name:      "not complex",
			nu:        NewUser{FirstName: "Ada", LastName: "Lovelace", Email: "ada@test.cd", Password: "abcdefgh1"},
			wantField: "password", wantTag: pwdComplexityTag,
		},
		{
			name:      "similar to last name",
			nu:        NewUser{FirstName: "Ada", LastName: "Lovelace", Email: "ada@test.cd", Password: "Lovelace1!"},
			wantField: "password", wantTag: pwdAttrSimTag,
		},
		{
			name:      "common",
			nu:        NewUser{FirstName: "Ada", LastName: "Lovelace", Email: "ada@test.cd", Password: "P@ssw0rd"},
			wantField: "password", wantTag: pwdNoCommonTag,
		},
		{
			name:      "bad email",
			nu:        NewUser{FirstName: "Ada", LastName: "Lovelace", Email: "ada", Password: "Kx9#mPq2!z"},
			wantField: "email", wantTag: "email",
		},
		{
			name:      "bad name",
			nu:        NewUser{FirstName: "Ada1", LastName: "Lovelace", Email: "ada@test.cd", Password: "Kx9#mPq2!z"},
			wantField: "first_name", wantTag: "personname",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.nu.PasswordConfirm == "" {
				tt.nu.PasswordConfirm = tt.nu.Password
			}
			err := validate.Struct(tt.nu)
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			verrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "got %T", err)
			require.NotEmpty(t, verrs)
			assert.Equal(t, tt.wantField, verrs[0].Field())
			assert.Equal(t, tt.wantTag, verrs[0].Tag())
		})
	}
}

func TestNewUserValidation_confirm(t *testing.T) {
	validate := newValidator()

	err := validate.Struct(NewUser{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@test.cd",
		Password: "Kx9#mPq2!z", PasswordConfirm: "Kx9#mPq2!y",
	})
	require.Error(t, err)
	verrs := err.(validator.ValidationErrors)
	assert.Equal(t, "password_confirm", verrs[0].Field())
	assert.Equal(t, "eqfield", verrs[0].Tag())
}

func TestIsCommonPassword(t *testing.T) {
	LoadCommonPasswords(assets.FS, assets.CommonPasswordsFile, nopLogger{})

	assert.True(t, isCommonPassword("Password123"))
	assert.False(t, isCommonPassword("Kx9#mPq2!z"))
}
