package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InverseCodex/agrivision-website-v2/internal/apperr"
)

func TestMemoryPutGet(t *testing.T) {
	m := NewMemory()

	url, err := m.Put(context.Background(), "a/b/c.json", []byte(`{"k":1}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, "mem://a/b/c.json", url)

	data, err := m.Get(context.Background(), "a/b/c.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"k":1}`), data)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryGetMissing(t *testing.T) {
	m := NewMemory()

	_, err := m.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeStorage, apperr.CodeOf(err))
}

func TestMemoryCopiesData(t *testing.T) {
	m := NewMemory()

	buf := []byte("original")
	_, err := m.Put(context.Background(), "p", buf, "text/plain")
	require.NoError(t, err)
	buf[0] = 'X'

	data, err := m.Get(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data)
}
