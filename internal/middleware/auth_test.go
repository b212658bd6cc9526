package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetJWTSecretUsesEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "per-deployment-secret")
	assert.Equal(t, []byte("per-deployment-secret"), GetJWTSecret())
}

func TestGetJWTSecretPanicsInReleaseWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("GIN_MODE", "release")
	assert.Panics(t, func() { GetJWTSecret() })
}

func TestGetJWTSecretDevFallback(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("GIN_MODE", "debug")
	assert.NotEmpty(t, GetJWTSecret())
}
