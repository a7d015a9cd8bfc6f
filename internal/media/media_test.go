package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coachline/coachline/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutAndDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewLocal(dir, "/media/")
	ctx := context.Background()

	url, err := store.Put(ctx, "sliders/a.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/media/sliders/a.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "sliders", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Delete(ctx, "sliders/a.png"))
	require.NoError(t, store.Delete(ctx, "sliders/a.png"))
	_, err = os.Stat(filepath.Join(dir, "sliders", "a.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalKeysCannotEscapeRoot(t *testing.T) {
	dir := t.TempDir()
	store := NewLocal(dir, "/media")
	_, err := store.Put(context.Background(), "../../etc/evil.png", "image/png", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "etc", "evil.png"))
	assert.NoError(t, err)
}

func TestNewKeyAndExtensions(t *testing.T) {
	key := NewKey("/thumbnails/../products", ".png")
	assert.True(t, strings.HasPrefix(key, "products/"), key)
	assert.True(t, strings.HasSuffix(key, ".png"))

	ext, ok := ExtensionFor("IMAGE/JPEG")
	assert.True(t, ok)
	assert.Equal(t, ".jpg", ext)
	_, ok = ExtensionFor("application/x-msdownload")
	assert.False(t, ok)
}

func TestNewSelectsDriver(t *testing.T) {
	store, err := New(context.Background(), config.StorageConfig{Driver: "local", Dir: t.TempDir(), PublicURL: "/media"})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, store)

	_, err = New(context.Background(), config.StorageConfig{Driver: "s3"})
	assert.Error(t, err)

	_, err = New(context.Background(), config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)
}
