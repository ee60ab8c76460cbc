package services_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jpkontreras/cw-sub006/catalog"
	"github.com/jpkontreras/cw-sub006/events"
	"github.com/jpkontreras/cw-sub006/eventstore"
	"github.com/jpkontreras/cw-sub006/models"
	"github.com/jpkontreras/cw-sub006/offers"
)

// --- Mock catalog gateway ---

type mockCatalog struct {
	prices      map[uuid.UUID]float64
	unavailable map[uuid.UUID]bool
	impacts     map[uuid.UUID]float64
	down        bool
	calls       int
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		prices:      make(map[uuid.UUID]float64),
		unavailable: make(map[uuid.UUID]bool),
		impacts:     make(map[uuid.UUID]float64),
	}
}

func (m *mockCatalog) GetPrice(_ context.Context, itemID, _ uuid.UUID, _ string) (catalog.PriceQuote, error) {
	m.calls++
	if m.down {
		return catalog.PriceQuote{}, fmt.Errorf("connection refused")
	}
	price, ok := m.prices[itemID]
	if !ok {
		return catalog.PriceQuote{}, fmt.Errorf("unknown item %s", itemID)
	}
	return catalog.PriceQuote{Price: price, Available: !m.unavailable[itemID]}, nil
}

func (m *mockCatalog) GetModifierPriceImpact(_ context.Context, modifierIDs []uuid.UUID) (float64, error) {
	if m.down {
		return 0, fmt.Errorf("connection refused")
	}
	var total float64
	for _, id := range modifierIDs {
		total += m.impacts[id]
	}
	return total, nil
}

// --- Mock session view repository ---

type mockSessionViews struct {
	mu    sync.Mutex
	views map[uuid.UUID]*models.SessionView
}

func newMockSessionViews() *mockSessionViews {
	return &mockSessionViews{views: make(map[uuid.UUID]*models.SessionView)}
}

func (m *mockSessionViews) Upsert(_ context.Context, view *models.SessionView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *view
	m.views[view.ID] = &cp
	return nil
}

func (m *mockSessionViews) FindByID(_ context.Context, id uuid.UUID) (*models.SessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	view, ok := m.views[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *view
	return &cp, nil
}

func (m *mockSessionViews) FindInactiveSince(_ context.Context, cutoff time.Time, statuses []string, limit int) ([]models.SessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SessionView
	for _, view := range m.views {
		if len(out) >= limit {
			break
		}
		for _, st := range statuses {
			if view.Status == st && view.LastActivityAt.Before(cutoff) {
				out = append(out, *view)
				break
			}
		}
	}
	return out, nil
}

func (m *mockSessionViews) FindByStatus(_ context.Context, status string, _, _ int) ([]models.SessionView, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SessionView
	for _, view := range m.views {
		if view.Status == status {
			out = append(out, *view)
		}
	}
	return out, int64(len(out)), nil
}

// --- Mock order view repository ---

type mockOrderViews struct {
	mu      sync.Mutex
	views   map[uuid.UUID]*models.OrderView
	history []models.OrderStatusHistory
}

func newMockOrderViews() *mockOrderViews {
	return &mockOrderViews{views: make(map[uuid.UUID]*models.OrderView)}
}

func (m *mockOrderViews) Upsert(_ context.Context, view *models.OrderView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *view
	m.views[view.ID] = &cp
	return nil
}

func (m *mockOrderViews) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.views, id)
	return nil
}

func (m *mockOrderViews) FindByID(_ context.Context, id uuid.UUID) (*models.OrderView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	view, ok := m.views[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *view
	return &cp, nil
}

func (m *mockOrderViews) FindByOrderNumber(_ context.Context, orderNumber string) (*models.OrderView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, view := range m.views {
		if view.OrderNumber == orderNumber {
			cp := *view
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOrderViews) FindAll(_ context.Context, _, _ int) ([]models.OrderView, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OrderView
	for _, view := range m.views {
		out = append(out, *view)
	}
	return out, int64(len(out)), nil
}

func (m *mockOrderViews) AppendHistory(_ context.Context, row *models.OrderStatusHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.history {
		if h.OrderID == row.OrderID && h.Sequence == row.Sequence {
			return nil
		}
	}
	m.history = append(m.history, *row)
	return nil
}

func (m *mockOrderViews) HistoryByOrderID(_ context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OrderStatusHistory
	for _, h := range m.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

// --- Mock offer repository ---

type redemptionKey struct {
	offerID uuid.UUID
	orderID uuid.UUID
}

type mockOfferRepo struct {
	mu          sync.Mutex
	offers      map[uuid.UUID]*offers.Offer
	redemptions map[redemptionKey]string
}

func newMockOfferRepo() *mockOfferRepo {
	return &mockOfferRepo{
		offers:      make(map[uuid.UUID]*offers.Offer),
		redemptions: make(map[redemptionKey]string),
	}
}

func (m *mockOfferRepo) Create(_ context.Context, offer *offers.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	cp := *offer
	m.offers[offer.ID] = &cp
	return nil
}

func (m *mockOfferRepo) FindByID(_ context.Context, id uuid.UUID) (*offers.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	offer, ok := m.offers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *offer
	return &cp, nil
}

func (m *mockOfferRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]offers.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []offers.Offer
	for _, id := range ids {
		if offer, ok := m.offers[id]; ok {
			out = append(out, *offer)
		}
	}
	return out, nil
}

func (m *mockOfferRepo) FindByCode(_ context.Context, code string) (*offers.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, offer := range m.offers {
		if offer.Code == code {
			cp := *offer
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOfferRepo) FindAutoApplicable(_ context.Context) ([]offers.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []offers.Offer
	for _, offer := range m.offers {
		if offer.Active && offer.Code == "" {
			out = append(out, *offer)
		}
	}
	return out, nil
}

func (m *mockOfferRepo) FindAll(_ context.Context, _, _ int) ([]offers.Offer, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []offers.Offer
	for _, offer := range m.offers {
		out = append(out, *offer)
	}
	return out, int64(len(out)), nil
}

func (m *mockOfferRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	offer, ok := m.offers[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	offer.Active = false
	return nil
}

func (m *mockOfferRepo) CustomerUsageCount(_ context.Context, offerID uuid.UUID, customerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int
	for key, cust := range m.redemptions {
		if key.offerID == offerID && cust == customerID {
			count++
		}
	}
	return count, nil
}

func (m *mockOfferRepo) RecordRedemption(_ context.Context, offerID, orderID uuid.UUID, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := redemptionKey{offerID: offerID, orderID: orderID}
	if _, ok := m.redemptions[key]; ok {
		return nil
	}
	m.redemptions[key] = customerID
	if offer, ok := m.offers[offerID]; ok {
		offer.UsageCount++
	}
	return nil
}

// --- Event sink capture ---

type captureSink struct {
	mu   sync.Mutex
	envs []eventstore.Envelope
}

func (s *captureSink) Publish(_ context.Context, envs []eventstore.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envs = append(s.envs, envs...)
	return nil
}

func (s *captureSink) types() []events.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Type, 0, len(s.envs))
	for _, env := range s.envs {
		out = append(out, env.Type)
	}
	return out
}

// --- Conflicting store decorator ---

// conflictOnceStore fails the first n appends per aggregate with a version
// conflict while letting a competing writer in, exercising the retry loop.
type conflictOnceStore struct {
	eventstore.Store
	mu        sync.Mutex
	remaining int
	competing func(ctx context.Context, aggregateID uuid.UUID)
}

func (s *conflictOnceStore) Append(ctx context.Context, aggregateID uuid.UUID, expectedVersion int64, evts []events.Event) ([]eventstore.Envelope, error) {
	s.mu.Lock()
	inject := s.remaining > 0
	if inject {
		s.remaining--
	}
	s.mu.Unlock()

	if inject {
		if s.competing != nil {
			s.competing(ctx, aggregateID)
		}
		return nil, eventstore.ErrConcurrencyConflict
	}
	return s.Store.Append(ctx, aggregateID, expectedVersion, evts)
}
