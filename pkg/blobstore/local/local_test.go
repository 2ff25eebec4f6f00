package local

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recflow/recflow/pkg/blobstore"
)

func TestStore_PutGetDelete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(t.Context(), "videos/demo.mp4", strings.NewReader("video-bytes")))

	r, err := store.Get(t.Context(), "videos/demo.mp4")
	require.NoError(t, err)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "video-bytes", string(data))

	require.NoError(t, store.Delete(t.Context(), "videos/demo.mp4"))

	_, err = store.Get(t.Context(), "videos/demo.mp4")
	assert.ErrorIs(t, err, blobstore.ErrBlobNotFound)
}

func TestStore_DeleteMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.ErrorIs(t, store.Delete(t.Context(), "nothing/here"), blobstore.ErrBlobNotFound)
}

func TestStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Put(t.Context(), "../outside", strings.NewReader("x")))
	_, err = store.Get(t.Context(), "/etc/passwd")
	assert.Error(t, err)
}

func TestStore_CreateUploadSession(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	session, err := store.CreateUploadSession(t.Context(), "recording.mp4")
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.Contains(t, session.Key, "recording.mp4")
	assert.False(t, session.ExpiresAt.IsZero())

	// The session key must be usable with Put immediately.
	require.NoError(t, store.Put(t.Context(), session.Key, strings.NewReader("bytes")))

	r, err := store.Get(t.Context(), session.Key)
	require.NoError(t, err)
	require.NoError(t, r.Close())
}

func TestRef_RoundTrip(t *testing.T) {
	ref := blobstore.Ref("uploads/abc/video.mp4")

	key, ok := blobstore.ParseRef(ref)
	require.True(t, ok)
	assert.Equal(t, "uploads/abc/video.mp4", key)

	_, ok = blobstore.ParseRef("/local/path/video.mp4")
	assert.False(t, ok)
}
