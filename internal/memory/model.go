package memory

import (
	"time"

	"github.com/google/uuid"
)

// Roles a turn can carry in the short-term window.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry in a conversation's short-term window.
type Turn struct {
	Role      string    `json:"role"`
	Author    string    `json:"author,omitempty"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Note is a long-term memory row: a distilled fact about a conversation
// scope, stored with its embedding for similarity recall.
type Note struct {
	ID        uuid.UUID `json:"id"`
	Scope     string    `json:"scope"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NoteMatch wraps a Note with its cosine similarity to the query.
type NoteMatch struct {
	Note       Note    `json:"note"`
	Similarity float64 `json:"similarity"`
}
