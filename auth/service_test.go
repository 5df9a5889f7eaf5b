package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-capacity-sync/database"
)

func newAuthService(t *testing.T) *Service {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db, "test-secret")
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAuthService(t)

	info, err := svc.Register(RegisterRequest{Username: "alex", Email: "a@x.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "alex", info.Username)
	assert.NotZero(t, info.ID)

	resp, err := svc.Login(LoginRequest{Username: "alex", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, info.ID, resp.User.ID)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, info.ID, claims.UserID)
	assert.Equal(t, "alex", claims.Username)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc := newAuthService(t)

	_, err := svc.Register(RegisterRequest{Username: "alex", Email: "a@x.com", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.Register(RegisterRequest{Username: "alex", Email: "other@x.com", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.Register(RegisterRequest{Username: "sam", Email: "a@x.com", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	svc := newAuthService(t)

	_, err := svc.Register(RegisterRequest{Username: "alex", Email: "a@x.com", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.Login(LoginRequest{Username: "alex", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(LoginRequest{Username: "nobody", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	svc := newAuthService(t)

	info, err := svc.Register(RegisterRequest{Username: "alex", Email: "a@x.com", Password: "hunter22"})
	require.NoError(t, err)

	err = svc.ChangePassword(info.ID, ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "newpass1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.ChangePassword(info.ID, ChangePasswordRequest{CurrentPassword: "hunter22", NewPassword: "newpass1"})
	require.NoError(t, err)

	_, err = svc.Login(LoginRequest{Username: "alex", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(LoginRequest{Username: "alex", Password: "newpass1"})
	assert.NoError(t, err)
}

func TestValidateTokenRejectsForgery(t *testing.T) {
	svc := newAuthService(t)
	other := &Service{jwtSecret: []byte("other-secret")}

	_, err := svc.Register(RegisterRequest{Username: "alex", Email: "a@x.com", Password: "hunter22"})
	require.NoError(t, err)
	resp, err := svc.Login(LoginRequest{Username: "alex", Password: "hunter22"})
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.Token)
	assert.Error(t, err)

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestPasswordHashesAreSalted(t *testing.T) {
	svc := newAuthService(t)

	first := svc.hashPassword("hunter22")
	second := svc.hashPassword("hunter22")
	assert.NotEqual(t, first, second)
	assert.True(t, svc.verifyPassword("hunter22", first))
	assert.True(t, svc.verifyPassword("hunter22", second))
	assert.False(t, svc.verifyPassword("hunter23", first))
}
