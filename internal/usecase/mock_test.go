//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"checkout-bridge/internal/domain"
	"checkout-bridge/internal/domain/model"
	"checkout-bridge/internal/domain/ports/adapter"
	"checkout-bridge/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// =============================
// Repositories
// =============================

// memSessionStore is a single-mutex stand-in for the real stores.
type memSessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*model.CheckoutSession

	CreateErr error
	// OnMarkReady runs before MarkReady takes the lock; lets tests interleave a new Create.
	OnMarkReady func(h model.SessionHandle)
}

var _ repository.SessionStore = (*memSessionStore)(nil)

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		ttl:      model.DefaultSessionTTL,
		now:      time.Now,
		sessions: make(map[string]*model.CheckoutSession),
	}
}

func (m *memSessionStore) Create(ctx context.Context, ns model.NewSession) (model.SessionHandle, error) {
	if m.CreateErr != nil {
		return model.SessionHandle{}, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	s := &model.CheckoutSession{
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
		ExpiresAt:  now.Add(m.ttl),
	}
	m.sessions[ns.OrderID] = s
	return model.SessionHandle{OrderID: s.OrderID, AttemptID: s.AttemptID, ExpiresAt: s.ExpiresAt}, nil
}

func (m *memSessionStore) MarkReady(ctx context.Context, h model.SessionHandle, url, sid string) (bool, error) {
	if m.OnMarkReady != nil {
		m.OnMarkReady(h)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[h.OrderID]
	if !ok || s.AttemptID != h.AttemptID || s.ExpiredAt(m.now()) {
		return false, nil
	}
	s.Status = model.SessionReady
	s.CheckoutURL = url
	s.PaymentSessionID = sid
	return true, nil
}

func (m *memSessionStore) MarkFailed(ctx context.Context, h model.SessionHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[h.OrderID]; ok && s.AttemptID == h.AttemptID {
		delete(m.sessions, h.OrderID)
	}
	return nil
}

func (m *memSessionStore) Get(ctx context.Context, orderID string) (*model.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[orderID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.ExpiredAt(m.now()) {
		delete(m.sessions, orderID)
		return nil, domain.ErrSessionExpired
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, s := range m.sessions {
		if s.ExpiredAt(now) {
			delete(m.sessions, k)
			n++
		}
	}
	return n, nil
}

func (m *memSessionStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// =============================
// Adapters
// =============================

type MockGateway struct {
	mu    sync.Mutex
	Calls []adapter.CheckoutRequest

	CreateFunc func(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutLink, error)
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutLink, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return adapter.CheckoutLink{CheckoutURL: "https://pay.example/" + req.PlanID, SessionID: "ch_" + req.PlanID}, nil
}

func (m *MockGateway) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

type MockOrderPlatform struct {
	mu      sync.Mutex
	Updates []model.SettlementUpdate

	UpdateFunc func(ctx context.Context, u model.SettlementUpdate) error
}

var _ adapter.OrderPlatform = (*MockOrderPlatform)(nil)

func (m *MockOrderPlatform) Name() string { return "mock-orders" }

func (m *MockOrderPlatform) UpdateOrderStatus(ctx context.Context, u model.SettlementUpdate) error {
	m.mu.Lock()
	m.Updates = append(m.Updates, u)
	m.mu.Unlock()
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, u)
	}
	return nil
}
