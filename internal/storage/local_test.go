package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeletedDocumentName(t *testing.T) {
	assert.Equal(t, "deleted/twitter_123/2-abc.json", DeletedDocumentName("twitter:123", "2-abc"))
}

func TestLocalStorage_StoreRetrieveList(t *testing.T) {
	ctx := context.Background()
	archive, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	first := DeletedDocumentName("twitter:1", "1-a")
	second := DeletedDocumentName("twitter:2", "3-b")
	require.NoError(t, archive.Store(ctx, first, []byte(`{"_id":"twitter:1"}`)))
	require.NoError(t, archive.Store(ctx, second, []byte(`{"_id":"twitter:2"}`)))

	data, err := archive.Retrieve(ctx, first)
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":"twitter:1"}`, string(data))

	names, err := archive.List(ctx, DeletedPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, names)

	names, err = archive.List(ctx, "deleted/twitter_2")
	require.NoError(t, err)
	assert.Equal(t, []string{second}, names)
}

func TestLocalStorage_RetrieveMissing(t *testing.T) {
	archive, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = archive.Retrieve(context.Background(), "deleted/nope.json")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalStorage_RejectsEscapingNames(t *testing.T) {
	archive, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, archive.Store(context.Background(), "../outside.json", []byte("{}")))
	_, err = archive.Retrieve(context.Background(), "/etc/passwd")
	assert.Error(t, err)
}

func TestLocalStorage_Delete(t *testing.T) {
	ctx := context.Background()
	archive, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name := DeletedDocumentName("twitter:1", "1-a")
	require.NoError(t, archive.Store(ctx, name, []byte(`{"_id":"twitter:1"}`)))
	require.NoError(t, archive.Delete(ctx, name))

	names, err := archive.List(ctx, DeletedPrefix)
	require.NoError(t, err)
	assert.Empty(t, names)

	err = archive.Delete(ctx, name)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Error(t, archive.Delete(ctx, "../outside.json"))
}
