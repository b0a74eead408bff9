package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"taskboard/internal/auth"
	"taskboard/internal/model"
	"taskboard/internal/session"
)

func TestAuthenticateShortCircuitsThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := session.NewCacheWithClient(client, time.Minute)
	defer cache.Close()

	st := newMemStore()
	service := NewService(st, cache, nil, testAdminKey, auth.TokenTTL, auth.BillingWindow)
	ctx := context.Background()

	key, _ := service.MintSignupKey(ctx, testAdminKey)
	sess, err := service.SignUp(ctx, SignUpInput{Login: "ann", Password: "longenough", SignupKey: key})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	if err := service.Authenticate(ctx, sess.UserID, sess.Token); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	// Drop the stored tokens behind the cache's back: within the cache
	// ttl the pair still verifies off the cache.
	if err := st.SaveCredentials(ctx, sess.UserID, model.Credentials{}); err != nil {
		t.Fatalf("SaveCredentials failed: %v", err)
	}
	if err := service.Authenticate(ctx, sess.UserID, sess.Token); err != nil {
		t.Fatalf("cached pair rejected: %v", err)
	}

	// Once the entry expires the credential blob is consulted again.
	mr.FastForward(2 * time.Minute)
	wantStatus(t, service.Authenticate(ctx, sess.UserID, sess.Token), 401)
}

func TestSignOutForgetsCachedTokens(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := session.NewCacheWithClient(client, time.Minute)
	defer cache.Close()

	st := newMemStore()
	service := NewService(st, cache, nil, testAdminKey, auth.TokenTTL, auth.BillingWindow)
	ctx := context.Background()

	key, _ := service.MintSignupKey(ctx, testAdminKey)
	sess, err := service.SignUp(ctx, SignUpInput{Login: "ann", Password: "longenough", SignupKey: key})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if err := service.Authenticate(ctx, sess.UserID, sess.Token); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if err := service.SignOut(ctx, sess.UserID, sess.Token); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	wantStatus(t, service.Authenticate(ctx, sess.UserID, sess.Token), 401)
}
