package taskform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHealth(t *testing.T) {
	assert.NoError(t, validateHealth("7"))
	assert.NoError(t, validateHealth(" 10 "))
	assert.Error(t, validateHealth(""))
	assert.Error(t, validateHealth("11"))
	assert.Error(t, validateHealth("good"))
}

func TestValidateImagePath(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "proof.JPG")
	require.NoError(t, os.WriteFile(img, []byte("jpeg"), 0o600))

	assert.NoError(t, validateImagePath(img))
	assert.Error(t, validateImagePath(""))
	assert.Error(t, validateImagePath(filepath.Join(dir, "missing.png")))
	assert.Error(t, validateImagePath(filepath.Join(dir, "notes.txt")))
}

func TestValidateRequired(t *testing.T) {
	check := validateRequired("Condition")
	assert.EqualError(t, check("  "), "Condition is required")
	assert.NoError(t, check("Filters clogged"))
}
