package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pms-suite/pms/internal/platform/httpx"
)

type sampleInput struct {
	Name  string `validate:"required,max=5"`
	Email string `validate:"omitempty,email"`
	Kind  string `validate:"oneof=a b"`
}

func TestValidateStruct(t *testing.T) {
	err := ValidateStruct(sampleInput{Name: "toolong", Email: "nope", Kind: "c"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrValidation))

	fields := FieldErrors(err)
	assert.Equal(t, "name must be at most 5 characters", fields["Name"])
	assert.Equal(t, "email must be a valid email", fields["Email"])
	assert.Equal(t, "kind must be one of a b", fields["Kind"])

	assert.NoError(t, ValidateStruct(sampleInput{Name: "ok", Kind: "a"}))
}

func TestInvalid(t *testing.T) {
	err := Invalid("Role", "role cannot be granted")
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Equal(t, "role cannot be granted", FieldErrors(err)["Role"])
	assert.Equal(t, "validation failed: role cannot be granted", err.Error())
	assert.Equal(t, "validation failed: role cannot be granted", UserSafeMessage(err))
	assert.Empty(t, FieldErrors(errors.New("boom")))
}

func TestUserSafeMessageHidesInternals(t *testing.T) {
	assert.Equal(t, "Forbidden", UserSafeMessage(httpx.ErrForbidden))
	assert.Equal(t, "Unauthorized", UserSafeMessage(httpx.ErrUnauthorized))
	assert.Equal(t, "Something went wrong, please try again", UserSafeMessage(errors.New("pq: relation missing")))
}
