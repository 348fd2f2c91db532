// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)
	err := app.ExecuteWithArgs(context.Background(), args)
	return stdout.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "evidence-mcp version dev")
}

func TestConfig_PrintsEffectiveConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", "render:\n  highlight_class: hl\n")
	out, err := run(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "hl")
}

func TestConfig_InvalidFileFails(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "version")
	assert.Error(t, err)
}

func TestDiff_Text(t *testing.T) {
	prev := writeFile(t, "prev.yaml", `items:
  - urnId: a
    quote: Revenue grew 12%
  - urnId: gone
    quote: Old risk
`)
	curr := writeFile(t, "curr.yaml", `items:
  - urnId: a
    quote: Revenue grew 14%
  - urnId: b
    quote: New segment
`)

	out, err := run(t, "diff", prev, curr)
	require.NoError(t, err)
	assert.Contains(t, out, "updated")
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "removed")
	assert.Contains(t, out, "1 created, 1 updated, 0 unchanged, 1 removed")
}

func TestDiff_JSON(t *testing.T) {
	prev := writeFile(t, "prev.json", `{"items":[{"urnId":"a","quote":"q"}]}`)
	curr := writeFile(t, "curr.json", `{"items":[{"urnId":"a","quote":"q"}]}`)

	out, err := run(t, "diff", prev, curr, "-o", "json")
	require.NoError(t, err)

	var got struct {
		Types map[string]string `json:"types"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "unchanged", got.Types["a"])
}

func TestDiff_MixedFormats(t *testing.T) {
	prev := writeFile(t, "prev.yaml", `items:
  - urnId: a
    quote: Margin held at 31%
`)
	curr := writeFile(t, "curr.json", `{"items":[{"urnId":"a","quote":"Margin held at 31%"},{"urnId":"b","quote":"Capex doubled"}]}`)

	out, err := run(t, "diff", prev, curr, "-o", "json")
	require.NoError(t, err)

	var got struct {
		Types map[string]string `json:"types"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "unchanged", got.Types["a"])
	assert.Equal(t, "created", got.Types["b"])
}

func TestDiff_RequiresTwoArgs(t *testing.T) {
	_, err := run(t, "diff", "one")
	assert.Error(t, err)
}

func TestAnchorPage(t *testing.T) {
	out, err := run(t, "anchor", "page",
		"--page-width", "600", "--page-height", "800",
		"--page", "1", "--x", "10", "--y", "20", "--width", "100", "--height", "15",
		"--container-width", "900")
	require.NoError(t, err)

	var got struct {
		Visible bool `json:"visible"`
		Rect    struct {
			Left, Top, Width, Height float64
		} `json:"rect"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Visible)
	assert.InDelta(t, 15, got.Rect.Left, 1e-9)
	assert.InDelta(t, 30, got.Rect.Top, 1e-9)
	assert.InDelta(t, 150, got.Rect.Width, 1e-9)
	assert.InDelta(t, 22.5, got.Rect.Height, 1e-9)
}

func TestAnchorPath_Markup(t *testing.T) {
	file := writeFile(t, "filing.html", `<html><body><p>one</p><p>two</p></body></html>`)

	out, err := run(t, "anchor", "path", "--file", file, "--path", "//p[2]", "--markup")
	require.NoError(t, err)
	assert.Contains(t, out, `class="evidence-highlight"`)
}

func TestAnchorPath_Mismatch(t *testing.T) {
	file := writeFile(t, "filing.html", `<html><body><p>one</p></body></html>`)

	_, err := run(t, "anchor", "path", "--file", file, "--path", "//table", "--markup")
	assert.ErrorContains(t, err, "anchor mismatch")
}
