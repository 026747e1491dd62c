package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbqa/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	t.Run("Reads supported files in order", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "faq.txt", "Q: Hi? A: Hello.")
		writeFile(t, dir, "guide.md", "# Guide\n\nText.")
		writeFile(t, dir, "image.png", "binary")
		require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
		writeFile(t, dir, filepath.Join("nested", "more.TXT"), "More.")

		docs, skips, err := New(nil, nil).Load(dir)
		require.NoError(t, err)
		assert.Empty(t, skips)
		require.Len(t, docs, 3)
		assert.Equal(t, "faq.txt", docs[0].Source)
		assert.Equal(t, "Q: Hi? A: Hello.", docs[0].Content)
		assert.Equal(t, "guide.md", docs[1].Source)
		assert.Equal(t, "more.TXT", docs[2].Source)
		assert.NotEqual(t, docs[0].ID, docs[1].ID)
	})

	t.Run("Custom extensions", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "faq.txt", "text")
		writeFile(t, dir, "guide.md", "text")

		docs, _, err := New([]string{"md"}, nil).Load(dir)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "guide.md", docs[0].Source)
	})

	t.Run("Broken PDF is skipped", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "broken.pdf", "not a pdf")
		writeFile(t, dir, "faq.txt", "text")

		docs, skips, err := New(nil, nil).Load(dir)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		require.Len(t, skips, 1)
		var item *domain.IngestionItemError
		require.True(t, errors.As(skips[0], &item))
		assert.Equal(t, "broken.pdf", item.Source)
		assert.Equal(t, -1, item.Chunk)
	})

	t.Run("Missing directory is fatal", func(t *testing.T) {
		_, _, err := New(nil, nil).Load(filepath.Join(t.TempDir(), "missing"))
		var fatal *domain.IngestionFatalError
		require.True(t, errors.As(err, &fatal))
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("File instead of directory is fatal", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "faq.txt", "text")
		_, _, err := New(nil, nil).Load(filepath.Join(dir, "faq.txt"))
		var fatal *domain.IngestionFatalError
		assert.True(t, errors.As(err, &fatal))
	})
}
