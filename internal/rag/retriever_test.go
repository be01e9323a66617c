package rag

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestFileRetrieverSearch(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "servicos.md",
		"Oferecemos consultoria gratuita de crescimento digital para clínicas e negócios locais.\n\n"+
			"Nossos planos começam em mil reais por mês, com foco em aquisição de clientes.")
	writeDoc(t, dir, "sobre.txt",
		"Não somos uma agência tradicional. Construímos sistemas de aquisição de clientes.")
	writeDoc(t, dir, "ignored.pdf", "binário")

	r := NewFileRetriever(dir, testLogger())
	ctx := context.Background()

	t.Run("relevant chunks ranked first", func(t *testing.T) {
		results, err := r.Search(ctx, "quanto custam os planos?", 3)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Contains(t, results[0], "planos")
		assert.Contains(t, results[0], "[Fonte: servicos.md]")
	})

	t.Run("no overlap yields nothing", func(t *testing.T) {
		results, err := r.Search(ctx, "xyzw qwerty", 3)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("topK bounds the result", func(t *testing.T) {
		results, err := r.Search(ctx, "clientes aquisição", 1)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})
}

func TestFileRetrieverMissingDir(t *testing.T) {
	r := NewFileRetriever(filepath.Join(t.TempDir(), "nope"), testLogger())

	results, err := r.Search(context.Background(), "qualquer coisa", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}
