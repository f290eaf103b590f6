package jwtutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_SignAndParse(t *testing.T) {
	s := &Signer{Secret: []byte("test-secret"), Issuer: "agent-manage", ExpMin: 60}

	token, err := s.Sign(7, "alice", "admin")
	require.NoError(t, err)

	claims, err := s.Parse(token)
	require.NoError(t, err)
	assert.EqualValues(t, 7, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "agent-manage", claims.Issuer)
}

func TestSigner_ParseRejectsWrongSecret(t *testing.T) {
	s := &Signer{Secret: []byte("test-secret"), Issuer: "agent-manage", ExpMin: 60}
	token, err := s.Sign(1, "bob", "user")
	require.NoError(t, err)

	other := &Signer{Secret: []byte("another-secret"), Issuer: "agent-manage", ExpMin: 60}
	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestSigner_ParseRejectsExpired(t *testing.T) {
	s := &Signer{Secret: []byte("test-secret"), Issuer: "agent-manage", ExpMin: -1}
	token, err := s.Sign(1, "bob", "user")
	require.NoError(t, err)

	_, err = s.Parse(token)
	assert.Error(t, err)
}

func TestSigner_ParseRejectsGarbage(t *testing.T) {
	s := &Signer{Secret: []byte("test-secret")}
	_, err := s.Parse("not-a-token")
	assert.Error(t, err)
}
