package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brokenWizard = `
kind: broken
steps:
  - id: intro
    title: Introduction
  - id: details
    title: Details
    shape:
      name: ""
    schema:
      nmae:
        required: true
  - id: review
    title: Review
  - id: conclusion
    title: Conclusion
`

func TestCatalogLint_Builtin(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"-v"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "business-plan")
	assert.Contains(t, out.String(), "tool-plan")
	assert.Contains(t, out.String(), "[review]")
}

func TestCatalogLint_Files(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(brokenWizard), 0o644))

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{bad, filepath.Join(dir, "missing.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 wizard file(s) failed")
	assert.Contains(t, out.String(), "nmae")
}
