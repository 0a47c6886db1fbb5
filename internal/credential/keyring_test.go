package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	s := New(keyring.NewArrayKeyring(nil))

	require.NoError(t, s.Set(KeyAccessToken, "tok-1"))

	got, err := s.Get(KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)

	require.NoError(t, s.Delete(KeyAccessToken))

	_, err = s.Get(KeyAccessToken)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreGetMissing(t *testing.T) {
	s := New(keyring.NewArrayKeyring(nil))

	_, err := s.Get(KeyUser)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDeleteMissingIsNoop(t *testing.T) {
	s := New(keyring.NewArrayKeyring(nil))

	assert.NoError(t, s.Delete(KeyUser))
}
