package services

import (
	"context"
	"sync"
	"time"

	"fleet-dash/internal/live-sync-service/core/ports/driven"
	"fleet-dash/internal/live-sync-service/core/ports/driver"
	"fleet-dash/internal/mylogger"
)

// TokenHolder is the current auth token, shared by the channel handshake and the registry
// requests.
type TokenHolder struct {
	mu    sync.RWMutex
	token string
}

func NewTokenHolder(token string) *TokenHolder {
	return &TokenHolder{token: token}
}

func (h *TokenHolder) Get() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *TokenHolder) Set(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

// TokenRefresher re-reads the token store and hands every new token to the live sync, so a
// session rejected with an expired token resumes once the user signs in again.
type TokenRefresher struct {
	store    driven.ITokenStore
	sync     driver.ILiveSync
	interval time.Duration
	log      mylogger.Logger

	last string
}

func NewTokenRefresher(store driven.ITokenStore, sync driver.ILiveSync, current string, interval time.Duration, log mylogger.Logger) *TokenRefresher {
	return &TokenRefresher{
		store:    store,
		sync:     sync,
		interval: interval,
		log:      log.Action("token_refresh"),
		last:     current,
	}
}

// Run checks the store every interval until ctx is done.
func (r *TokenRefresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Check(ctx)
		}
	}
}

// Check loads the token once and applies it when it differs from the last one seen.
func (r *TokenRefresher) Check(ctx context.Context) {
	token, err := r.store.Load()
	if err != nil {
		r.log.Warn("token store unreadable", "error", err)
		return
	}
	if token == "" || token == r.last {
		return
	}
	r.last = token
	r.log.Info("auth token changed")
	if err := r.sync.SetToken(ctx, token); err != nil {
		r.log.Error("new token not accepted", err)
	}
}
