package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefault(t *testing.T) {
	p := Load("/nonexistent/persona.txt")
	assert.NotEmpty(t, p.SystemPrompt(nil))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.txt")
	require.NoError(t, os.WriteFile(path, []byte("You are a pirate.\n"), 0o644))

	p := Load(path)
	assert.Equal(t, "You are a pirate.", p.SystemPrompt(nil))
}

func TestSystemPromptIncludesNotes(t *testing.T) {
	p := Load("")
	prompt := p.SystemPrompt([]string{"alice likes jazz"})
	assert.Contains(t, prompt, "alice likes jazz")
}

func TestStyleHints(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"lowercase no punctuation", "hey whats up", " [no punctuation, all lowercase, short]"},
		{"casual slang", "nah im good tbh", " [no punctuation, all lowercase, short, casual slang]"},
		{"very short", "yo", " [no punctuation, all lowercase, very short]"},
		{"all caps", "WHY WOULD YOU DO THAT", " [no punctuation, all caps]"},
		{"plain sentence", "I went to the store today. It was fine and rather uneventful overall.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StyleHints(tt.body))
		})
	}
}

func TestStyleHintsWordBoundaries(t *testing.T) {
	// "frost" contains "fr" but is not slang.
	assert.NotContains(t, StyleHints("The frost arrived early this year."), "casual slang")
}

func TestAnnotateTurn(t *testing.T) {
	assert.Equal(t, "[me]: sounds good", AnnotateTurn("", "sounds good", true))
	assert.Equal(t, "[alice [no punctuation, all lowercase, very short]]: hey", AnnotateTurn("alice", "hey", false))
}
