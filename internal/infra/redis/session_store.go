package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"checkout-bridge/internal/domain"
	"checkout-bridge/internal/domain/model"
	"checkout-bridge/internal/domain/ports/repository"
)

var _ repository.SessionStore = (*SessionStore)(nil)

// The attempt check and the write happen inside one script so a stale
// attempt can never overwrite or delete a newer one. Requires Redis >= 6 for KEEPTTL.
var luaMarkReady = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then return 0 end
local s = cjson.decode(v)
if s.attempt_id ~= ARGV[1] or s.status ~= "pending" then return 0 end
s.status = "ready"
s.checkout_url = ARGV[2]
s.payment_session_id = ARGV[3]
redis.call("SET", KEYS[1], cjson.encode(s), "KEEPTTL")
return 1`)

var luaDelIfAttempt = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then return 0 end
local s = cjson.decode(v)
if s.attempt_id ~= ARGV[1] then return 0 end
return redis.call("DEL", KEYS[1])`)

// SessionStore keeps checkout sessions in Redis so several bridge instances
// can share them. Keys outlive the session by a grace period so that a poll
// shortly after expiry is still answered with "expired".
type SessionStore struct {
	client *redClient
	ttl    time.Duration
	grace  time.Duration
	now    func() time.Time
}

func NewSessionStore(client *redClient, ttl, grace time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = model.DefaultSessionTTL
	}
	return &SessionStore{client: client, ttl: ttl, grace: grace, now: time.Now}
}

func (s *SessionStore) sessionKey(orderID string) string {
	return fmt.Sprintf("checkout_session:%s", orderID)
}

func (s *SessionStore) Create(ctx context.Context, ns model.NewSession) (model.SessionHandle, error) {
	if ns.OrderID == "" {
		return model.SessionHandle{}, domain.ErrInvalidArgument
	}
	now := s.now().UTC()
	sess := model.CheckoutSession{
		OrderID:    ns.OrderID,
		AttemptID:  uuid.NewString(),
		Status:     model.SessionPending,
		Amount:     ns.Amount,
		Currency:   ns.Currency,
		OfferTitle: ns.OfferTitle,
		UserEmail:  ns.UserEmail,
		PlanID:     ns.Plan.ID,
		PlanName:   ns.Plan.Name,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return model.SessionHandle{}, err
	}
	if err := s.client.Set(ctx, s.sessionKey(ns.OrderID), data, s.ttl+s.grace); err != nil {
		return model.SessionHandle{}, fmt.Errorf("redis set session: %w", err)
	}
	return model.SessionHandle{OrderID: sess.OrderID, AttemptID: sess.AttemptID, ExpiresAt: sess.ExpiresAt}, nil
}

func (s *SessionStore) MarkReady(ctx context.Context, h model.SessionHandle, checkoutURL, paymentSessionID string) (bool, error) {
	if checkoutURL == "" {
		return false, domain.ErrInvalidArgument
	}
	// the attempt's expiry is fixed, so the handle is enough to check it
	if !s.now().Before(h.ExpiresAt) {
		return false, nil
	}
	n, err := luaMarkReady.Run(ctx, s.client.cli, []string{s.sessionKey(h.OrderID)}, h.AttemptID, checkoutURL, paymentSessionID).Int()
	if err != nil {
		return false, fmt.Errorf("redis mark ready: %w", err)
	}
	return n == 1, nil
}

func (s *SessionStore) MarkFailed(ctx context.Context, h model.SessionHandle) error {
	if err := luaDelIfAttempt.Run(ctx, s.client.cli, []string{s.sessionKey(h.OrderID)}, h.AttemptID).Err(); err != nil {
		return fmt.Errorf("redis mark failed: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, orderID string) (*model.CheckoutSession, error) {
	key := s.sessionKey(orderID)
	data, err := s.client.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var sess model.CheckoutSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", orderID, err)
	}
	if sess.ExpiredAt(s.now()) {
		// only the reader that actually deletes it reports "expired"
		n, err := luaDelIfAttempt.Run(ctx, s.client.cli, []string{key}, sess.AttemptID).Int()
		if err != nil {
			return nil, fmt.Errorf("redis evict session: %w", err)
		}
		if n == 1 {
			return nil, domain.ErrSessionExpired
		}
		return nil, domain.ErrSessionNotFound
	}
	return &sess, nil
}

// Sweep is a no-op: Redis expires keys on its own.
func (s *SessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
