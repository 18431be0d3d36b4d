package wordlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDedupesAndSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("id\n\nuser\nid\n  \nadmin\n"), 0o644))

	names, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "user", "admin"}, names)
}

func TestResolvePathExpandsAlias(t *testing.T) {
	assert.Equal(t, "db/small.txt", ResolvePath("small"))
	assert.Equal(t, "custom.txt", ResolvePath("custom.txt"))
}

func TestDetectCasing(t *testing.T) {
	c, ok := DetectCasing("like_this")
	assert.True(t, ok)
	assert.Equal(t, CasingSnake, c)

	c, ok = DetectCasing("likeThis")
	assert.True(t, ok)
	assert.Equal(t, CasingCamel, c)

	c, ok = DetectCasing("likethis")
	assert.True(t, ok)
	assert.Equal(t, CasingFlat, c)
}

func TestRecaseTransformsEachStyle(t *testing.T) {
	assert.Equal(t, "user_id", Recase("userId", CasingSnake))
	assert.Equal(t, "userId", Recase("user_id", CasingCamel))
	assert.Equal(t, "userid", Recase("user_id", CasingFlat))
}

func TestRecaseAllDropsCollisions(t *testing.T) {
	out := RecaseAll([]string{"user_id", "userId"}, CasingFlat)
	assert.Equal(t, []string{"userid"}, out)
}
