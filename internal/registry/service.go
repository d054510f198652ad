package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Service caches the channel and ignore tables in memory so the hot path
// (every inbound message) never touches Postgres. Mutations write through and
// update the snapshot under lock.
type Service struct {
	repo Repository

	mu       sync.RWMutex
	channels map[string]Channel
	ignored  map[string]IgnoredUser
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:     repo,
		channels: make(map[string]Channel),
		ignored:  make(map[string]IgnoredUser),
	}
}

// Load populates the snapshot from Postgres. Called once at startup.
func (s *Service) Load(ctx context.Context) error {
	channels, err := s.repo.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("loading channels: %w", err)
	}
	ignored, err := s.repo.ListIgnored(ctx)
	if err != nil {
		return fmt.Errorf("loading ignore list: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = make(map[string]Channel, len(channels))
	for _, ch := range channels {
		s.channels[strings.ToLower(ch.JID)] = ch
	}
	s.ignored = make(map[string]IgnoredUser, len(ignored))
	for _, u := range ignored {
		s.ignored[strings.ToLower(u.JID)] = u
	}

	slog.Info("registry loaded", "channels", len(channels), "ignored", len(ignored))
	return nil
}

// ChannelActive reports whether a groupchat channel should get replies.
func (s *Service) ChannelActive(jid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[strings.ToLower(jid)]
	return ok && ch.Active
}

// UserIgnored reports whether a sender is on the ignore list.
func (s *Service) UserIgnored(jid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ignored[strings.ToLower(jid)]
	return ok
}

// Channels returns a copy of all known channels.
func (s *Service) Channels() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	return out
}

// Ignored returns a copy of the ignore list.
func (s *Service) Ignored() []IgnoredUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]IgnoredUser, 0, len(s.ignored))
	for _, u := range s.ignored {
		out = append(out, u)
	}
	return out
}

// ActivateChannel registers (or re-activates) a channel for replies.
func (s *Service) ActivateChannel(ctx context.Context, jid, nick string) error {
	jid = strings.ToLower(jid)
	ch := Channel{JID: jid, Nick: nick, Active: true}
	if err := s.repo.UpsertChannel(ctx, ch); err != nil {
		return err
	}
	s.mu.Lock()
	s.channels[jid] = ch
	s.mu.Unlock()
	return nil
}

// DeactivateChannel keeps the channel registered but stops replies in it.
func (s *Service) DeactivateChannel(ctx context.Context, jid string) error {
	jid = strings.ToLower(jid)
	if err := s.repo.SetChannelActive(ctx, jid, false); err != nil {
		return err
	}
	s.mu.Lock()
	if ch, ok := s.channels[jid]; ok {
		ch.Active = false
		s.channels[jid] = ch
	}
	s.mu.Unlock()
	return nil
}

// RemoveChannel forgets the channel entirely, registration included.
func (s *Service) RemoveChannel(ctx context.Context, jid string) error {
	jid = strings.ToLower(jid)
	if err := s.repo.DeleteChannel(ctx, jid); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.channels, jid)
	s.mu.Unlock()
	return nil
}

// IgnoreUser adds a sender to the ignore list.
func (s *Service) IgnoreUser(ctx context.Context, jid, reason string) error {
	jid = strings.ToLower(jid)
	u := IgnoredUser{JID: jid, Reason: reason}
	if err := s.repo.AddIgnored(ctx, u); err != nil {
		return err
	}
	s.mu.Lock()
	s.ignored[jid] = u
	s.mu.Unlock()
	return nil
}

// UnignoreUser removes a sender from the ignore list.
func (s *Service) UnignoreUser(ctx context.Context, jid string) error {
	jid = strings.ToLower(jid)
	if err := s.repo.RemoveIgnored(ctx, jid); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.ignored, jid)
	s.mu.Unlock()
	return nil
}
