package respond

import (
	"strings"
	"unicode/utf8"
)

// maxChunkLen bounds a single outbound message body.
const maxChunkLen = 2000

// SplitReply breaks a generated reply into at most maxChunks messages.
// Paragraph breaks split first; oversized paragraphs split at sentence
// boundaries, then hard-wrap as a last resort. Overflow past the chunk cap is
// dropped rather than flooding the channel.
func SplitReply(text string, maxChunks int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChunks < 1 {
		maxChunks = 1
	}

	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxChunkLen {
			chunks = append(chunks, para)
			continue
		}
		chunks = append(chunks, splitLong(para)...)
	}

	if len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}
	return chunks
}

func splitLong(s string) []string {
	var out []string
	var cur strings.Builder

	for _, sentence := range splitSentences(s) {
		if cur.Len() > 0 && cur.Len()+len(sentence)+1 > maxChunkLen {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
		for len(sentence) > maxChunkLen {
			// Back the cut off to a rune start so no chunk ends mid-rune.
			cut := maxChunkLen
			for cut > 0 && !utf8.RuneStart(sentence[cut]) {
				cut--
			}
			out = append(out, sentence[:cut])
			sentence = sentence[cut:]
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(sentence)
	}
	if cur.Len() > 0 {
		out = append(out, strings.TrimSpace(cur.String()))
	}
	return out
}

func splitSentences(s string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			end := i + 1
			for end < len(s) && (s[end] == '.' || s[end] == '!' || s[end] == '?') {
				end++
			}
			if end == len(s) || s[end] == ' ' || s[end] == '\n' {
				sentences = append(sentences, strings.TrimSpace(s[start:end]))
				start = end
				i = end - 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// NeutralizeMentions defangs @-mentions with a zero-width space so a reply
// can quote an address without pinging anyone.
func NeutralizeMentions(s string) string {
	return strings.ReplaceAll(s, "@", "@​")
}
