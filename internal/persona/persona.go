package persona

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode"
)

//go:embed default_persona.txt
var defaultPersona string

// Persona holds the system instruction text the model is steered with.
type Persona struct {
	instructions string
}

// Load reads the persona file at path. An empty path or a missing file falls
// back to the embedded default so the bot always has a voice.
func Load(path string) *Persona {
	if path == "" {
		return &Persona{instructions: defaultPersona}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("persona file unreadable, using embedded default", "path", path, "error", err)
		return &Persona{instructions: defaultPersona}
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return &Persona{instructions: defaultPersona}
	}
	return &Persona{instructions: text}
}

// SystemPrompt returns the instruction text, optionally extended with
// recalled long-term notes about the conversation.
func (p *Persona) SystemPrompt(notes []string) string {
	if len(notes) == 0 {
		return p.instructions
	}

	var b strings.Builder
	b.WriteString(p.instructions)
	b.WriteString("\n\nThings you remember about this conversation:\n")
	for _, n := range notes {
		b.WriteString("- ")
		b.WriteString(n)
		b.WriteString("\n")
	}
	return b.String()
}

// StyleHints inspects a human message and names its register so the model can
// mirror it. Returns an empty string when nothing stands out.
func StyleHints(body string) string {
	var patterns []string

	if !strings.ContainsAny(body, ".!?") {
		patterns = append(patterns, "no punctuation")
	}

	if isAllLower(body) {
		patterns = append(patterns, "all lowercase")
	} else if isAllUpper(body) {
		patterns = append(patterns, "all caps")
	}

	switch n := len([]rune(body)); {
	case n <= 5:
		patterns = append(patterns, "very short")
	case n <= 15:
		patterns = append(patterns, "short")
	}

	lower := strings.ToLower(body)
	for _, w := range []string{"lol", "fr", "nah", "yeah", "yep", "nope", "idk", "tbh", "prolly", "gonna", "wanna"} {
		if containsWord(lower, w) {
			patterns = append(patterns, "casual slang")
			break
		}
	}

	if len(patterns) == 0 {
		return ""
	}
	return fmt.Sprintf(" [%s]", strings.Join(patterns, ", "))
}

// AnnotateTurn formats a history line the way the model sees it, tagging
// human turns with their style so replies match register.
func AnnotateTurn(author, body string, fromBot bool) string {
	if fromBot {
		return "[me]: " + body
	}
	return fmt.Sprintf("[%s%s]: %s", author, StyleHints(body), body)
}

func isAllLower(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsUpper(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

func containsWord(s, word string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordRune(rune(s[start-1]))
		afterOK := end == len(s) || !isWordRune(rune(s[end]))
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
