package credstore

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

const (
	KeyAuthToken   = "authToken"
	KeyUserProfile = "userProfile"
)

// Store is the opaque key/value contract the API client depends on.
// Failures are logged by the implementation and never surface.
type Store interface {
	GetItem(ctx context.Context, key string) (string, bool)
	SetItem(ctx context.Context, key, value string)
	RemoveItem(ctx context.Context, key string)
}

// Backend is a concrete storage medium.
type Backend interface {
	Name() string
	Available() bool
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

var ErrUnavailable = errors.New("credstore: no storage backend available")

// Selector routes every operation to the first available backend, so a
// secure file store degrades to memory when the home dir is unusable.
type Selector struct {
	backends []Backend
	log      zerolog.Logger
}

func New(log zerolog.Logger, primary Backend, fallbacks ...Backend) *Selector {
	return &Selector{
		backends: append([]Backend{primary}, fallbacks...),
		log:      log.With().Str("component", "credstore").Logger(),
	}
}

func (s *Selector) active() (Backend, error) {
	for _, b := range s.backends {
		if b != nil && b.Available() {
			return b, nil
		}
	}
	return nil, ErrUnavailable
}

// Available reports whether any backend can be used.
func (s *Selector) Available() bool {
	_, err := s.active()
	return err == nil
}

func (s *Selector) GetItem(ctx context.Context, key string) (string, bool) {
	b, err := s.active()
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("get item")
		return "", false
	}
	v, ok, err := b.Get(ctx, key)
	if err != nil {
		s.log.Error().Err(err).Str("backend", b.Name()).Str("key", key).Msg("get item")
		return "", false
	}
	return v, ok
}

func (s *Selector) SetItem(ctx context.Context, key, value string) {
	b, err := s.active()
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("set item")
		return
	}
	if err := b.Set(ctx, key, value); err != nil {
		s.log.Error().Err(err).Str("backend", b.Name()).Str("key", key).Msg("set item")
	}
}

func (s *Selector) RemoveItem(ctx context.Context, key string) {
	b, err := s.active()
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("remove item")
		return
	}
	if err := b.Delete(ctx, key); err != nil {
		s.log.Error().Err(err).Str("backend", b.Name()).Str("key", key).Msg("remove item")
	}
}
