package demo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/coach-ai-platform/internal/coach"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, []string{"confidence", "date-planning", "first-message", "profile-review"}, c.Slugs())

	cfg, ok := c.Lookup(" Profile-Review ")
	require.True(t, ok)
	assert.True(t, cfg.Complete())
	assert.Contains(t, cfg.SystemPrompt, "<suggestions>")

	_, ok = c.Lookup("speed-dating")
	assert.False(t, ok)
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "variants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadCatalog_OverlaysFile(t *testing.T) {
	path := writeFile(t, `
variants:
  confidence:
    system_prompt: "Be brief."
    preferences: {tone: direct, length: short, style: coaching}
    context: {name: Alex, type: single}
  breakup-recovery:
    system_prompt: "Help them move on."
    preferences: {tone: empathetic, length: long, style: conversational}
    context:
      name: Sky
      type: recently single
      goals: [heal, meet new people]
`)
	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c.Slugs(), 5)

	cfg, ok := c.Lookup("confidence")
	require.True(t, ok)
	assert.Equal(t, "Be brief.", cfg.SystemPrompt)
	assert.Equal(t, coach.ToneDirect, cfg.Preferences.Tone)

	cfg, ok = c.Lookup("breakup-recovery")
	require.True(t, ok)
	assert.Equal(t, []string{"heal", "meet new people"}, cfg.Context.Goals)
}

func TestLoadCatalog_RejectsInvalidVariants(t *testing.T) {
	tests := map[string]string{
		"missing context": `
variants:
  broken:
    system_prompt: "x"
    preferences: {tone: direct, length: short, style: coaching}
`,
		"bad enum": `
variants:
  broken:
    system_prompt: "x"
    preferences: {tone: grumpy, length: short, style: coaching}
    context: {name: A, type: b}
`,
		"not yaml": "variants: [unclosed",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCatalog(writeFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Len(t, c.Slugs(), 4)
}
