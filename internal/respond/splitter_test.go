package respond

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitReplyShortTextSingleChunk(t *testing.T) {
	chunks := SplitReply("sounds good to me", 3)
	assert.Equal(t, []string{"sounds good to me"}, chunks)
}

func TestSplitReplyParagraphs(t *testing.T) {
	chunks := SplitReply("first thought\n\nsecond thought", 3)
	assert.Equal(t, []string{"first thought", "second thought"}, chunks)
}

func TestSplitReplyCapsChunks(t *testing.T) {
	chunks := SplitReply("one\n\ntwo\n\nthree\n\nfour\n\nfive", 3)
	assert.Len(t, chunks, 3)
	assert.Equal(t, "three", chunks[2])
}

func TestSplitReplyLongParagraphSplitsAtSentences(t *testing.T) {
	sentence := strings.Repeat("word ", 80) + "end."
	text := strings.TrimSpace(strings.Repeat(sentence+" ", 8))

	chunks := SplitReply(text, 10)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), maxChunkLen)
	}
}

func TestSplitReplyHardWrapKeepsRunesIntact(t *testing.T) {
	// No sentence or paragraph breaks, multi-byte runes throughout, so the
	// splitter has to hard-wrap.
	// Three bytes per rune, so a byte-offset cut would land mid-rune.
	text := strings.Repeat("あ", maxChunkLen)

	chunks := SplitReply(text, 10)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.LessOrEqual(t, len(c), maxChunkLen)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitReplyEmpty(t *testing.T) {
	assert.Nil(t, SplitReply("   ", 3))
}

func TestNeutralizeMentions(t *testing.T) {
	assert.Equal(t, "hey @​alice", NeutralizeMentions("hey @alice"))
	assert.Equal(t, "no mentions here", NeutralizeMentions("no mentions here"))
}
