package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"checkout-bridge/internal/domain"
	"checkout-bridge/internal/domain/model"
	"checkout-bridge/internal/domain/ports/repository"
)

const shardCount = 32

var _ repository.SessionStore = (*SessionStore)(nil)

type shard struct {
	mu       sync.Mutex
	sessions map[string]*model.CheckoutSession
}

// SessionStore keeps checkout sessions in process memory. Keys are spread
// over lock-striped shards so operations on one order never wait on another
// shard, and the sweeper holds each shard lock only while scanning it.
type SessionStore struct {
	ttl    time.Duration
	now    func() time.Time
	shards [shardCount]*shard
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return newSessionStore(ttl, time.Now)
}

// NewSessionStoreWithClock is for tests that need to move time.
func NewSessionStoreWithClock(ttl time.Duration, now func() time.Time) *SessionStore {
	return newSessionStore(ttl, now)
}

func newSessionStore(ttl time.Duration, now func() time.Time) *SessionStore {
	if ttl <= 0 {
		ttl = model.DefaultSessionTTL
	}
	s := &SessionStore{ttl: ttl, now: now}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*model.CheckoutSession)}
	}
	return s
}

func (s *SessionStore) shardFor(orderID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderID))
	return s.shards[h.Sum32()%shardCount]
}

func (s *SessionStore) Create(ctx context.Context, ns model.NewSession) (model.SessionHandle, error) {
	if ns.OrderID == "" {
		return model.SessionHandle{}, domain.ErrInvalidArgument
	}
	now := s.now()
	sess := &model.CheckoutSession{
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

	sh := s.shardFor(ns.OrderID)
	sh.mu.Lock()
	sh.sessions[ns.OrderID] = sess // last create wins
	sh.mu.Unlock()

	return model.SessionHandle{OrderID: sess.OrderID, AttemptID: sess.AttemptID, ExpiresAt: sess.ExpiresAt}, nil
}

func (s *SessionStore) MarkReady(ctx context.Context, h model.SessionHandle, checkoutURL, paymentSessionID string) (bool, error) {
	if checkoutURL == "" {
		return false, domain.ErrInvalidArgument
	}
	sh := s.shardFor(h.OrderID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[h.OrderID]
	if !ok || sess.AttemptID != h.AttemptID || sess.Status != model.SessionPending {
		return false, nil
	}
	if sess.ExpiredAt(s.now()) {
		return false, nil
	}
	// replace rather than mutate so readers holding a copy never see a torn update
	next := *sess
	next.Status = model.SessionReady
	next.CheckoutURL = checkoutURL
	next.PaymentSessionID = paymentSessionID
	sh.sessions[h.OrderID] = &next
	return true, nil
}

func (s *SessionStore) MarkFailed(ctx context.Context, h model.SessionHandle) error {
	sh := s.shardFor(h.OrderID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sess, ok := sh.sessions[h.OrderID]; ok && sess.AttemptID == h.AttemptID {
		delete(sh.sessions, h.OrderID)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, orderID string) (*model.CheckoutSession, error) {
	sh := s.shardFor(orderID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[orderID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if sess.ExpiredAt(s.now()) {
		delete(sh.sessions, orderID)
		return nil, domain.ErrSessionExpired
	}
	cp := *sess
	return &cp, nil
}

// Sweep removes every session expired at now and returns how many it removed.
func (s *SessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	for _, sh := range s.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if sess.ExpiredAt(now) {
				delete(sh.sessions, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Len counts live and not-yet-swept entries; used by health reporting.
func (s *SessionStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}
