package domain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTemplates(t *testing.T) {
	tmpl := DefaultTemplates()

	for _, name := range []Template{
		TemplatePairProgramming, TemplateCodeReview, TemplateDesignReview,
		TemplateBrainstorming, TemplateTraining, TemplateDebugging, TemplateCustom,
	} {
		preset, err := tmpl.Get(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, preset.Name)
		assert.Positive(t, preset.MaxParticipants, name)
	}

	_, err := tmpl.Get("karaoke")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestLoadTemplates_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	data := []byte(`
pair-programming:
  maxParticipants: 3
  allowGuests: true
mob:
  description: everyone at once
  maxParticipants: 12
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	tmpl, err := LoadTemplates(path)
	require.NoError(t, err)

	pair, err := tmpl.Get(TemplatePairProgramming)
	require.NoError(t, err)
	assert.Equal(t, 3, pair.MaxParticipants)
	assert.True(t, pair.AllowGuests)

	mob, err := tmpl.Get("mob")
	require.NoError(t, err)
	assert.Equal(t, 12, mob.MaxParticipants)

	// built-in presets are not modified by the overlay
	builtin, err := DefaultTemplates().Get(TemplatePairProgramming)
	require.NoError(t, err)
	assert.Equal(t, 2, builtin.MaxParticipants)
}

func TestParseTemplates_RejectsZeroCapacity(t *testing.T) {
	_, err := ParseTemplates([]byte("empty:\n  maxParticipants: 0\n"))
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}
