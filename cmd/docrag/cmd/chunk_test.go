package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibhup/docrag/internal/chunk"
)

func writeTestDoc(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "s3-versioning.md")
	require.NoError(t, os.WriteFile(path, []byte(`# S3 Versioning

Versioning keeps every revision of an object.

## Enabling

Enable versioning on the bucket before writing objects.
`), 0o644))
	return path
}

func TestChunkCmd_JSONOutput(t *testing.T) {
	// Given: a chunk command over a small markdown file
	path := writeTestDoc(t)
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetArgs([]string{"chunk", path, "--format", "json"})

	// When: executing
	err := root.Execute()

	// Then: chunks decode with provenance filled in
	require.NoError(t, err)
	var chunks []chunk.Chunk
	require.NoError(t, json.Unmarshal(buf.Bytes(), &chunks))
	require.NotEmpty(t, chunks)
	assert.Equal(t, "S3 Versioning", chunks[0].DocTitle)
	assert.Equal(t, "s3", chunks[0].Metadata.ServiceName)
	assert.Equal(t, "markdown", chunks[0].Metadata.DocumentType)
}

func TestChunkCmd_TextOutput(t *testing.T) {
	// Given: a chunk command with default text format
	path := writeTestDoc(t)
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetArgs([]string{"chunk", path})

	// When: executing
	err := root.Execute()

	// Then: the summary line and section titles appear
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "chunk(s)")
	assert.Contains(t, output, "tokens")
}

func TestChunkCmd_MissingFile(t *testing.T) {
	// Given: a chunk command over a file that does not exist
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"chunk", filepath.Join(t.TempDir(), "absent.md")})

	// When: executing
	err := root.Execute()

	// Then: it fails
	require.Error(t, err)
}
