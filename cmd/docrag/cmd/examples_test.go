package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExamplesCmd_ListsAllCategories(t *testing.T) {
	// Given: an examples command with no flags
	cmd := newExamplesCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	// When: executing
	err := cmd.Execute()

	// Then: every category appears with runnable query lines
	require.NoError(t, err)
	output := buf.String()
	for _, name := range categoryNames() {
		assert.Contains(t, output, name+":")
	}
	assert.Contains(t, output, `docrag query "`)
}

func TestExamplesCmd_SingleCategory(t *testing.T) {
	// Given: an examples command restricted to storage
	cmd := newExamplesCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--category", "storage"})

	// When: executing
	err := cmd.Execute()

	// Then: only storage questions are shown
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "storage:")
	assert.NotContains(t, output, "networking:")
}

func TestExamplesCmd_UnknownCategory(t *testing.T) {
	// Given: an examples command with an unknown category
	cmd := newExamplesCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--category", "quantum"})

	// When: executing
	err := cmd.Execute()

	// Then: it fails naming the available categories
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantum")
	assert.Contains(t, err.Error(), "storage")
}

func TestExamplesCmd_JSONOutput(t *testing.T) {
	// Given: an examples command with --format json
	cmd := newExamplesCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--format", "json"})

	// When: executing
	err := cmd.Execute()

	// Then: the catalog decodes with every category populated
	require.NoError(t, err)
	var decoded []exampleCategory
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, len(exampleCategories))
	for _, c := range decoded {
		assert.NotEmpty(t, c.Questions)
	}
}
