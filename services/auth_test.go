package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRoleSharedSecrets(t *testing.T) {
	auth := NewAuthService("sesame", "peek", "jwt-secret")

	assert.Equal(t, RoleAdmin, auth.ResolveRole("sesame"))
	assert.Equal(t, RoleViewer, auth.ResolveRole("peek"))
	assert.Equal(t, RoleNone, auth.ResolveRole("wrong"))
	assert.Equal(t, RoleNone, auth.ResolveRole(""))
}

func TestResolveRoleTrimsCredential(t *testing.T) {
	auth := NewAuthService(" sesame ", "peek", "jwt-secret")

	assert.Equal(t, RoleAdmin, auth.ResolveRole("sesame"))
	assert.Equal(t, RoleAdmin, auth.ResolveRole("  sesame\n"))
}

func TestResolveRoleEmptyConfiguredSecret(t *testing.T) {
	auth := NewAuthService("sesame", "", "jwt-secret")

	// An unset viewer secret must not make an empty key a viewer.
	assert.Equal(t, RoleNone, auth.ResolveRole(""))
	assert.Equal(t, RoleNone, auth.ResolveRole("   "))
}

func TestSessionTokenRoundTrip(t *testing.T) {
	auth := NewAuthService("sesame", "peek", "jwt-secret")

	token, err := auth.CreateToken(RoleViewer)
	require.NoError(t, err)

	assert.Equal(t, RoleViewer, auth.ResolveRole(token))
}

func TestSessionTokenWrongSecretRejected(t *testing.T) {
	issuer := NewAuthService("sesame", "peek", "secret-a")
	verifier := NewAuthService("sesame", "peek", "secret-b")

	token, err := issuer.CreateToken(RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, RoleNone, verifier.ResolveRole(token))
}
