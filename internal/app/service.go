package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"teamsync/api/internal/auth"
	"teamsync/api/internal/config"
	"teamsync/api/internal/relay"
)

type Session struct {
	Token     string
	Subject   string
	JTI       string
	ExpiresAt time.Time
}

type revocationStore interface {
	RevokeToken(ctx context.Context, tokenID, subject string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Ping(ctx context.Context) error
}

type Service struct {
	cfg         config.Config
	registry    *relay.Registry
	revocations revocationStore
	now         func() time.Time
}

func New(cfg config.Config, registry *relay.Registry) *Service {
	return &Service{
		cfg:      cfg,
		registry: registry,
		now:      time.Now,
	}
}

// NewWithRevocationStore enables logout: revoked token ids are rejected until they expire.
func NewWithRevocationStore(cfg config.Config, registry *relay.Registry, revocations revocationStore) *Service {
	service := New(cfg, registry)
	service.revocations = revocations
	return service
}

func (s *Service) Registry() *relay.Registry {
	return s.registry
}

func (s *Service) HeartbeatInterval() time.Duration {
	if s.cfg.HeartbeatInterval <= 0 {
		return 30 * time.Second
	}
	return s.cfg.HeartbeatInterval
}

func (s *Service) IssueToken(_ context.Context, email string) (Session, error) {
	subject := strings.TrimSpace(email)
	if subject == "" {
		return Session{}, validationError("email required (string)")
	}
	token, claims, err := auth.IssueToken([]byte(s.cfg.JWTSecret), subject, s.cfg.TokenTTL, s.now())
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		Subject:   subject,
		JTI:       claims.ID,
		ExpiresAt: claims.Expiry(),
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	if strings.TrimSpace(token) == "" {
		return Session{}, auth.ErrInvalidToken
	}
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	if s.revocations != nil && claims.ID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Session{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return Session{}, auth.ErrRevokedToken
		}
	}
	return Session{
		Token:     token,
		Subject:   claims.Subject,
		JTI:       claims.ID,
		ExpiresAt: claims.Expiry(),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session) error {
	if s.revocations == nil || session.JTI == "" {
		return nil
	}
	return s.revocations.RevokeToken(ctx, session.JTI, session.Subject, session.ExpiresAt)
}

// Subscribe creates a subscriber for room, queues its hello frame and
// registers it. The hello frame is queued first so it always precedes any
// broadcast the subscriber receives.
func (s *Service) Subscribe(room, uid string) *relay.Subscriber {
	sub := relay.NewSubscriber(uid, room, s.cfg.BufferSize)
	_ = sub.Send(relay.HelloFrame(uid, room, s.now()))
	s.registry.Register(room, sub)
	return sub
}

func (s *Service) Unsubscribe(sub *relay.Subscriber) {
	sub.Close()
	s.registry.Unregister(sub.Room, sub)
}

// Publish fans payload out to room as a patch frame and returns how many
// subscribers accepted it.
func (s *Service) Publish(room string, payload []byte) int {
	return s.registry.Broadcast(room, relay.PatchFrame(payload))
}

func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) Stats() relay.Stats {
	return s.registry.Stats()
}

// Ping checks the revocation store. Without one there is nothing to check.
func (s *Service) Ping(ctx context.Context) error {
	if s.revocations == nil {
		return nil
	}
	return s.revocations.Ping(ctx)
}

func (s *Service) RevocationEnabled() bool {
	return s.revocations != nil
}

func isAuthError(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrRevokedToken)
}

func logAuthFailure(r *http.Request, err error) {
	if isAuthError(err) {
		return
	}
	log.Printf("[sync] credential check failed path=%s: %v", r.URL.Path, err)
}
