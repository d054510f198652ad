package memory

import (
	"context"
	"log/slog"

	"github.com/parley-im/parley/internal/config"
)

// Embedder turns text into a vector. The provider chain satisfies this.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service ties the short-term Redis window to the optional long-term pgvector
// store. Memory failures degrade rather than block: a reply generated without
// history beats no reply at all.
type Service struct {
	short    *ShortTermStore
	long     LongTermRepository
	embedder Embedder
	cfg      config.MemoryConfig
}

func NewService(short *ShortTermStore, long LongTermRepository, embedder Embedder, cfg config.MemoryConfig) *Service {
	return &Service{short: short, long: long, embedder: embedder, cfg: cfg}
}

// Recent returns the scope's short-term window, oldest first. Returns an
// empty window on store errors.
func (s *Service) Recent(ctx context.Context, scope string) []Turn {
	turns, err := s.short.Recent(ctx, scope)
	if err != nil {
		slog.Warn("short-term read failed, replying without history", "scope", scope, "error", err)
		return nil
	}
	return turns
}

// Record appends a turn to the scope's window.
func (s *Service) Record(ctx context.Context, scope string, turn Turn) {
	if err := s.short.Append(ctx, scope, turn); err != nil {
		slog.Warn("short-term append failed", "scope", scope, "error", err)
	}
}

// Recall searches long-term notes similar to the query text. Returns nil when
// long-term memory is disabled or anything along the way fails.
func (s *Service) Recall(ctx context.Context, scope, query string) []NoteMatch {
	if !s.cfg.LongTerm || s.long == nil || s.embedder == nil {
		return nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("embedding query failed", "scope", scope, "error", err)
		return nil
	}

	matches, err := s.long.SearchSimilar(ctx, scope, vec, s.cfg.LongTermMaxResults, s.cfg.SimilarityThreshold)
	if err != nil {
		slog.Warn("long-term recall failed", "scope", scope, "error", err)
		return nil
	}
	return matches
}

// Remember distills a note into long-term storage with its embedding.
func (s *Service) Remember(ctx context.Context, scope, content string) error {
	if !s.cfg.LongTerm || s.long == nil {
		return nil
	}

	note := &Note{Scope: scope, Content: content}
	if s.embedder != nil {
		if vec, err := s.embedder.Embed(ctx, content); err == nil {
			note.Embedding = vec
		} else {
			slog.Warn("embedding note failed, storing without vector", "scope", scope, "error", err)
		}
	}
	return s.long.Create(ctx, note)
}

// Wipe clears a scope's short-term window and long-term notes.
func (s *Service) Wipe(ctx context.Context, scope string) error {
	if err := s.short.Clear(ctx, scope); err != nil {
		return err
	}
	if s.cfg.LongTerm && s.long != nil {
		if _, err := s.long.DeleteByScope(ctx, scope); err != nil {
			return err
		}
	}
	return nil
}
