package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestValidateReturnsSubject(t *testing.T) {
	v, err := NewValidatorHS256(testSecret)
	require.NoError(t, err)

	sub, err := v.Validate(signHS256(t, jwt.MapClaims{
		"sub": "user-a",
		"exp": time.Now().Add(time.Hour).Unix(),
	}))
	require.NoError(t, err)
	assert.Equal(t, "user-a", sub)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	v, err := NewValidatorHS256(testSecret)
	require.NoError(t, err)

	_, err = v.Validate(signHS256(t, jwt.MapClaims{
		"sub": "user-a",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}))
	assert.Error(t, err)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	v, err := NewValidatorHS256("a different secret")
	require.NoError(t, err)

	_, err = v.Validate(signHS256(t, jwt.MapClaims{"sub": "user-a"}))
	assert.Error(t, err)
}

func TestValidateRejectsMissingSubject(t *testing.T) {
	v, err := NewValidatorHS256(testSecret)
	require.NoError(t, err)

	_, err = v.Validate(signHS256(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}))
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	v, err := NewValidatorHS256(testSecret)
	require.NoError(t, err)

	_, err = v.Validate("not.a.token")
	assert.Error(t, err)
}

func TestNewValidatorHS256RejectsEmptySecret(t *testing.T) {
	_, err := NewValidatorHS256("")
	assert.Error(t, err)
}
