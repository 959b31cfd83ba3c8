package trade

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/swaply-api/internal/models"
)

// memStore — хранилище в памяти для тестов жизненного цикла.
// Воспроизводит контракт Store: Transition атомарен под общим мьютексом,
// конкурирующие переходы сериализуются.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	items    map[uuid.UUID]*models.Item
	trades   map[uuid.UUID]*models.Trade
	messages []models.Message
	now      time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[uuid.UUID]*models.User),
		items:  make(map[uuid.UUID]*models.Item),
		trades: make(map[uuid.UUID]*models.Trade),
		now:    time.Now(),
	}
}

// tick выдает монотонно растущее время для детерминированной сортировки
func (s *memStore) tick() time.Time {
	s.now = s.now.Add(time.Millisecond)
	return s.now
}

func (s *memStore) addUser(username string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: uuid.New(), Username: username}
	s.users[u.ID] = u
	return u
}

func (s *memStore) addItem(owner *models.User, title string) *models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := &models.Item{
		ID:       uuid.New(),
		UserID:   owner.ID,
		Title:    title,
		Category: models.CategoryToy,
		Status:   models.ItemStatusActive,
	}
	s.items[i.ID] = i
	return i
}

func (s *memStore) itemStatus(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id].Status
}

func (s *memStore) GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return nil, models.ErrNotFound("предложение обмена не найдено")
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.items[id]
	if !ok || i.Status == models.ItemStatusDeleted {
		return nil, models.ErrNotFound("вещь не найдена")
	}
	cp := *i
	return &cp, nil
}

func (s *memStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound("пользователь не найден")
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) IsItemAvailable(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAvailableLocked(id), nil
}

func (s *memStore) isAvailableLocked(id uuid.UUID) bool {
	i, ok := s.items[id]
	if !ok || i.Status != models.ItemStatusActive {
		return false
	}
	for _, t := range s.trades {
		if t.Status == models.TradeAccepted && t.References(id) {
			return false
		}
	}
	return true
}

func (s *memStore) HasPendingDuplicate(ctx context.Context, p models.TradeProposal, responderID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trades {
		if t.Status == models.TradePending &&
			t.RequesterID == p.RequesterID &&
			t.ResponderID == responderID &&
			t.OfferedItemID == p.OfferedItemID &&
			t.RequestedItemID == p.RequestedItemID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateTrade(ctx context.Context, t *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.CreatedAt = s.tick()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	s.trades[t.ID] = &cp
	return nil
}

func (s *memStore) Transition(ctx context.Context, tradeID uuid.UUID, next models.TradeStatus) (*models.Trade, []models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[tradeID]
	if !ok {
		return nil, nil, models.ErrNotFound("предложение обмена не найдено")
	}
	if t.Status != models.TradePending {
		return nil, nil, models.ErrInvalidState("предложение уже не находится в ожидании")
	}

	var cascaded []models.Trade
	if next == models.TradeAccepted {
		for _, blocked := range []uuid.UUID{t.OfferedItemID, t.RequestedItemID} {
			if !s.isAvailableLocked(blocked) {
				return nil, nil, models.ErrInvalidState("вещь уже участвует в принятом обмене")
			}
		}

		for _, other := range s.trades {
			if other.ID == t.ID || other.Status != models.TradePending {
				continue
			}
			if other.References(t.OfferedItemID) || other.References(t.RequestedItemID) {
				other.Status = models.TradeRejected
				other.UpdatedAt = s.tick()
				cascaded = append(cascaded, *other)
			}
		}

		s.items[t.OfferedItemID].Status = models.ItemStatusTraded
		s.items[t.RequestedItemID].Status = models.ItemStatusTraded
	}

	t.Status = next
	t.UpdatedAt = s.tick()
	cp := *t
	return &cp, cascaded, nil
}

func (s *memStore) ListTrades(ctx context.Context, userID uuid.UUID, role string, status models.TradeStatus) ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Trade
	for _, t := range s.trades {
		switch role {
		case "incoming":
			if t.ResponderID != userID {
				continue
			}
		case "outgoing":
			if t.RequesterID != userID {
				continue
			}
		default:
			if !t.IsParty(userID) {
				continue
			}
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, *t)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memStore) CountPendingFor(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, t := range s.trades {
		if t.ResponderID == userID && t.Status == models.TradePending {
			count++
		}
	}
	return count, nil
}

func (s *memStore) CreateMessage(ctx context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.CreatedAt = s.tick()
	s.messages = append(s.messages, *m)
	return nil
}

func (s *memStore) ListMessages(ctx context.Context, tradeID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Message
	for _, m := range s.messages {
		if m.TradeID == tradeID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
