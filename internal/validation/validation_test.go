package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangalib/pkg/models"
)

func TestRegisterRules(t *testing.T) {
	res := Validate(EndpointRegister, models.RegisterRequest{
		Username: "a!",
		Email:    "not-an-email",
		Password: "123",
		FullName: "Nguyen Van A",
	})

	assert.False(t, res.Valid)
	assert.Equal(t, []string{"username", "email", "password"}, res.Fields())
	assert.Equal(t, msgUsername+"\n"+msgEmail+"\n"+msgPassword, FormatErrors(res))
}

func TestRegisterValid(t *testing.T) {
	res := Validate(EndpointRegister, &models.RegisterRequest{
		Username: "reader_01",
		Email:    "reader@example.com",
		Password: "secret1",
		FullName: "Reader",
	})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, FormatErrors(res))
}

func TestLoginBlankFields(t *testing.T) {
	res := Validate(EndpointLogin, models.LoginRequest{Username: "   ", Password: ""})
	assert.Equal(t, map[string]string{
		"username": "Username or email is required",
		"password": "Password is required",
	}, res.Errors)
}

func TestOptionalFieldsSkippedWhenEmpty(t *testing.T) {
	assert.True(t, Validate(EndpointUpdateProfile, models.UpdateProfileRequest{}).Valid)
	assert.True(t, Validate(EndpointUpdateBook, models.UpdateBookRequest{}).Valid)

	res := Validate(EndpointUpdateBook, models.UpdateBookRequest{Description: strings.Repeat("x", 1001)})
	assert.Equal(t, "Description must not exceed 1000 characters", res.Errors["description"])
}

func TestVIPExpiry(t *testing.T) {
	base := models.CreateUserRequest{
		Username: "vip_user",
		Email:    "vip@example.com",
		Password: "secret1",
		FullName: "VIP",
		Role:     models.RoleVIP,
	}

	res := Validate(EndpointCreateUser, base)
	require.False(t, res.Valid)
	assert.Equal(t, "VIP expiration date is required when role is VIP", res.Errors["vipExpiresAt"])

	past := base
	past.VIPExpiresAt = time.Now().Add(-24 * time.Hour).Format(time.RFC3339)
	assert.False(t, Validate(EndpointCreateUser, past).Valid)

	future := base
	future.VIPExpiresAt = time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339)
	assert.True(t, Validate(EndpointCreateUser, future).Valid)

	standard := base
	standard.Role = models.RoleStandard
	assert.True(t, Validate(EndpointCreateUser, standard).Valid)

	res = Validate(EndpointUpdateRole, models.UpdateRoleRequest{Role: "OWNER"})
	assert.Equal(t, msgRole, res.Errors["role"])
}

func TestUnknownEndpointPasses(t *testing.T) {
	assert.True(t, Validate("books/list", models.LoginRequest{}).Valid)
}

func TestCheckReturnsTypedError(t *testing.T) {
	err := Check(EndpointChangePassword, models.ChangePasswordRequest{OldPassword: "x", NewPassword: "1"})
	var vErr *Error
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "New password must be at least 6 characters", vErr.Error())

	assert.NoError(t, Check(EndpointLogin, models.LoginRequest{Username: "a", Password: "b"}))
}

func TestHelpers(t *testing.T) {
	assert.True(t, ValidateEmail("a@b.co"))
	assert.False(t, ValidateEmail("a b@c.d"))
	assert.False(t, ValidateEmail("a@b"))

	assert.Empty(t, PasswordError("123456"))
	assert.Equal(t, msgPassword, PasswordError("12345"))

	_, ok := ParseDate("2030-01-02")
	assert.True(t, ok)
	_, ok = ParseDate("tomorrow")
	assert.False(t, ok)
}

func TestEveryRequestTagIsRegistered(t *testing.T) {
	reqs := []any{
		models.LoginRequest{},
		models.RegisterRequest{},
		models.UpdateProfileRequest{},
		models.ChangePasswordRequest{},
		models.CreateUserRequest{},
		models.UpdateRoleRequest{},
		models.UploadBookRequest{},
		models.UpdateBookRequest{},
	}
	for _, req := range reqs {
		assert.NotPanics(t, func() { _ = Engine().Struct(req) }, "%T", req)
	}
}

func TestWhitespaceOnlyIsBlank(t *testing.T) {
	res := Validate(EndpointRegister, models.RegisterRequest{
		Username: "reader_01",
		Email:    "reader@example.com",
		Password: "secret1",
		FullName: "      ",
	})
	assert.Equal(t, []string{"fullName"}, res.Fields())
	assert.Equal(t, msgFullName, res.Errors["fullName"])
}
