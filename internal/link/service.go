// Package link implements the identity-linking OAuth flow: building
// authorization requests with the identity encoded in state, exchanging
// authorization codes, and maintaining the persisted credential.
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/vitalinkhq/vitalink/internal/config"
	"github.com/vitalinkhq/vitalink/internal/credentials"
	"github.com/vitalinkhq/vitalink/internal/identity"
)

// CredentialStore is the persistence surface the link service needs.
type CredentialStore interface {
	Get(ctx context.Context, id string) (credentials.Record, error)
	Upsert(ctx context.Context, id string, fields TokenUpsert) error
}

// TokenUpsert aliases the store's whole-record payload.
type TokenUpsert = credentials.TokenFields

// Service builds authorization requests and handles OAuth callbacks.
type Service struct {
	oauth  *oauth2.Config
	codec  *StateCodec
	store  CredentialStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates the identity-link service from the WHOOP OAuth
// configuration. redirectURL must match the URL registered with the
// provider.
func NewService(log *slog.Logger, cfg config.WhoopConfig, redirectURL string, codec *StateCodec, store CredentialStore) *Service {
	if log == nil {
		log = slog.Default()
	}
	apiBase := strings.TrimRight(cfg.APIBase, "/")
	return &Service{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       strings.Fields(cfg.Scopes),
			Endpoint: oauth2.Endpoint{
				AuthURL:  apiBase + "/oauth/oauth2/auth",
				TokenURL: apiBase + "/oauth/oauth2/token",
			},
		},
		codec:  codec,
		store:  store,
		logger: log.With(slog.String("service", "link")),
		now:    time.Now,
	}
}

// BuildAuthorizationRequest validates the identity and returns the full
// provider authorization URL with the identity encoded in state.
func (s *Service) BuildAuthorizationRequest(rawIdentity string) (string, error) {
	id, err := identity.NormalizeAndValidate(rawIdentity)
	if err != nil {
		return "", err
	}
	state, err := s.codec.Encode(id)
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	return s.oauth.AuthCodeURL(state), nil
}

// HandleCallback runs one callback invocation through its state machine:
// decode state, exchange the code, persist the credential. Each invocation
// terminates in either a persisted credential or a typed failure.
func (s *Service) HandleCallback(ctx context.Context, code, state string) (CallbackOutcome, error) {
	id, err := s.codec.Decode(state)
	if err != nil {
		return CallbackOutcome{}, err
	}
	if strings.TrimSpace(code) == "" {
		return CallbackOutcome{}, ErrMissingCode
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return CallbackOutcome{}, asExchangeError(err)
	}

	if err := s.persistToken(ctx, id, token); err != nil {
		return CallbackOutcome{}, err
	}
	s.logger.Info("identity linked", slog.String("identity", id))
	return CallbackOutcome{Identity: id}, nil
}

// RefreshCredential performs exactly one refresh grant for the identity and
// persists the replacement token. Callers own the retry policy; this method
// never retries.
func (s *Service) RefreshCredential(ctx context.Context, id, refreshToken string) (credentials.Record, error) {
	id, err := identity.NormalizeAndValidate(id)
	if err != nil {
		return credentials.Record{}, err
	}
	if strings.TrimSpace(refreshToken) == "" {
		return credentials.Record{}, fmt.Errorf("refresh token is required")
	}

	// TokenSource with an expired token forces a refresh grant on first use.
	src := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return credentials.Record{}, asExchangeError(err)
	}

	if err := s.persistToken(ctx, id, token); err != nil {
		return credentials.Record{}, err
	}
	s.logger.Info("credential refreshed", slog.String("identity", id))
	return s.store.Get(ctx, id)
}

func (s *Service) persistToken(ctx context.Context, id string, token *oauth2.Token) error {
	scope, _ := token.Extra("scope").(string)
	issued := s.now().UTC()
	fields := TokenUpsert{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Scope:        scope,
		IssuedAt:     issued,
		ExpiresAt:    token.Expiry.UTC(),
	}
	if err := s.store.Upsert(ctx, id, fields); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

func asExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &TokenExchangeError{
			Status: status,
			Body:   strings.TrimSpace(string(retrieveErr.Body)),
		}
	}
	return fmt.Errorf("token endpoint: %w", err)
}
