package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretEqual(t *testing.T) {
	assert.True(t, SecretEqual("s3cret", "s3cret"))
	assert.False(t, SecretEqual("wrong", "s3cret"))
	assert.False(t, SecretEqual("", "s3cret"))
	assert.False(t, SecretEqual("", ""), "unset secret must never match")
	assert.False(t, SecretEqual("anything", ""))
}

func signToken(t *testing.T, secret, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": role})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyAllowsConfiguredRoles(t *testing.T) {
	v := NewRoleVerifier("jwt-secret", []string{"admin", "notificador"})

	assert.NoError(t, v.Verify(signToken(t, "jwt-secret", "admin")))
	assert.NoError(t, v.Verify(signToken(t, "jwt-secret", "notificador")))
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	v := NewRoleVerifier("jwt-secret", []string{"admin"})

	err := v.Verify(signToken(t, "jwt-secret", "lector"))
	assert.ErrorIs(t, err, ErrForbiddenRole)
}

func TestVerifyRejectsMissingRoleClaim(t *testing.T) {
	v := NewRoleVerifier("jwt-secret", []string{"admin"})
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alguien"})
	signed, err := token.SignedString([]byte("jwt-secret"))
	require.NoError(t, err)

	assert.ErrorIs(t, v.Verify(signed), ErrForbiddenRole)
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	v := NewRoleVerifier("jwt-secret", []string{"admin"})

	err := v.Verify(signToken(t, "otro-secreto", "admin"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := NewRoleVerifier("jwt-secret", []string{"admin"})

	assert.ErrorIs(t, v.Verify("no-es-un-jwt"), ErrInvalidToken)
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	v := NewRoleVerifier("jwt-secret", []string{"admin"})
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"role": "admin"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	assert.ErrorIs(t, v.Verify(signed), ErrInvalidToken)
}
