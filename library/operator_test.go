package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOperator(t *testing.T) {
	op, err := NewOperator("", "")
	require.NoError(t, err)

	assert.NoError(t, op.Authenticate("admin", "1234"))
	assert.ErrorIs(t, op.Authenticate("admin", "wrong"), ErrUnauthorized)
	assert.ErrorIs(t, op.Authenticate("root", "1234"), ErrUnauthorized)
}

func TestConfiguredOperator(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	op, err := NewOperator("desk", hash)
	require.NoError(t, err)
	assert.NoError(t, op.Authenticate("desk", "s3cret"))
	assert.ErrorIs(t, op.Authenticate("desk", "1234"), ErrUnauthorized)

	_, err = NewOperator("desk", "not-a-hash")
	assert.Error(t, err)
	_, err = HashPassword("")
	assert.Error(t, err)
}
