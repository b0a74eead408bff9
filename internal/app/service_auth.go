package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"

	"taskboard/internal/auth"
	"taskboard/internal/model"
	"taskboard/internal/store"
	"taskboard/internal/util"
)

// Session is what a successful sign-up or sign-in hands back: the user
// id plus the one-time view of the token secret.
type Session struct {
	UserID int64  `json:"id"`
	Token  string `json:"token"`
}

type SignUpInput struct {
	Login     string `json:"login"`
	Password  string `json:"password"`
	SignupKey string `json:"signup_key"`
}

type SignInInput struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// SignUp burns a registration key, creates the user and issues the
// first session token in one go.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (Session, error) {
	if in.Login == "" {
		return Session{}, errInvalidInput("login must not be empty")
	}
	if len(in.Password) < auth.MinPasswordLen {
		return Session{}, errInvalidInput("password too short")
	}

	err := s.store.ConsumeSignupKey(ctx, in.SignupKey)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, errUnauthorized()
	}
	if err != nil {
		return Session{}, fmt.Errorf("consume signup key: %w", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	secret, err := auth.NewSecret()
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	credentials := model.Credentials{
		PasswordHash: hash,
		Tokens: []model.Token{{
			Digest:   auth.Digest(secret),
			LastUsed: s.now().Unix(),
		}},
	}

	userID, err := s.store.CreateUser(ctx, in.Login, credentials)
	if errors.Is(err, store.ErrConflict) {
		return Session{}, errInvalidInput("login already taken")
	}
	if err != nil {
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	return Session{UserID: userID, Token: secret}, nil
}

// SignIn verifies the password and appends a fresh token to the
// credential blob. Expired tokens are compacted on the way.
func (s *Service) SignIn(ctx context.Context, in SignInInput) (Session, error) {
	userID, credentials, err := s.store.UserByLogin(ctx, in.Login)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, errUnauthorized()
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if !auth.VerifyPassword(credentials.PasswordHash, in.Password) {
		return Session{}, errUnauthorized()
	}

	now := s.now()
	kept, _, _ := auth.ValidateTokens(credentials.Tokens, "", now, s.tokenTTL)
	secret, err := auth.NewSecret()
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	credentials.Tokens = append(kept, model.Token{
		Digest:   auth.Digest(secret),
		LastUsed: now.Unix(),
	})
	if err := s.store.SaveCredentials(ctx, userID, credentials); err != nil {
		return Session{}, fmt.Errorf("save credentials: %w", err)
	}
	return Session{UserID: userID, Token: secret}, nil
}

// Authenticate checks a presented (user id, token secret) pair against
// the credential blob, sliding the token's five-day window forward on a
// match. Recently verified pairs short-circuit through the cache and
// skip the credential rewrite.
func (s *Service) Authenticate(ctx context.Context, userID int64, secret string) error {
	digest := auth.Digest(secret)
	if s.cache != nil && s.cache.Known(ctx, userID, digest) {
		return nil
	}

	credentials, err := s.store.Credentials(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return errUnauthorized()
	}
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	kept, valid, changed := auth.ValidateTokens(credentials.Tokens, digest, s.now(), s.tokenTTL)
	if changed {
		credentials.Tokens = kept
		if err := s.store.SaveCredentials(ctx, userID, credentials); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}
	}
	if !valid {
		return errUnauthorized()
	}
	if s.cache != nil {
		if err := s.cache.Remember(ctx, userID, digest); err != nil {
			log.Printf("session cache write failed: %v", err)
		}
	}
	return nil
}

// SignOut drops the presented token and everything cached for the
// user. Unknown tokens sign out successfully; there is nothing to
// leak.
func (s *Service) SignOut(ctx context.Context, userID int64, secret string) error {
	credentials, err := s.store.Credentials(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return errUnauthorized()
	}
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	digest := auth.Digest(secret)
	kept := credentials.Tokens[:0]
	for _, tk := range credentials.Tokens {
		if tk.Digest != digest {
			kept = append(kept, tk)
		}
	}
	credentials.Tokens = kept
	if err := s.store.SaveCredentials(ctx, userID, credentials); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Forget(ctx, userID); err != nil {
			log.Printf("session cache drop failed: %v", err)
		}
	}
	return nil
}

// MintSignupKey creates a single-use registration key. Only callers
// presenting the configured admin key may mint.
func (s *Service) MintSignupKey(ctx context.Context, adminKey string) (string, error) {
	if !s.adminKeyMatches(adminKey) {
		return "", errUnauthorized()
	}
	key := util.NewKey(32)
	if err := s.store.CreateSignupKey(ctx, key); err != nil {
		return "", fmt.Errorf("create signup key: %w", err)
	}
	return key, nil
}

func (s *Service) adminKeyMatches(presented string) bool {
	if s.adminKey == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.adminKey), []byte(presented)) == 1
}
