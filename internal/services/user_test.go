package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InverseCodex/agrivision-website-v2/internal/apperr"
	"github.com/InverseCodex/agrivision-website-v2/internal/testutil"
)

func newUserService() *UserService {
	return NewUserService(testutil.NewMemUsers(), "test-secret")
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newUserService()

	user, err := svc.Register(context.Background(), "op@example.com", "field-op", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "hunter2", user.PasswordHash)

	loggedIn, token, err := svc.Login(context.Background(), "field-op", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	subject, err := svc.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newUserService()

	_, err := svc.Register(context.Background(), "op@example.com", "field-op", "hunter2")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "op@example.com", "other", "secret")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeState, apperr.CodeOf(err))
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newUserService()

	_, err := svc.Register(context.Background(), "op@example.com", "field-op", "hunter2")
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "field-op", "wrong")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
}

func TestLoginUnknownUser(t *testing.T) {
	svc := newUserService()

	_, _, err := svc.Login(context.Background(), "ghost", "whatever")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestValidateJWTRejectsForeignSignature(t *testing.T) {
	svc := newUserService()
	other := NewUserService(testutil.NewMemUsers(), "different-secret")

	token, err := other.GenerateJWT("some-user")
	require.NoError(t, err)

	_, err = svc.ValidateJWT(token)
	require.Error(t, err)
}
