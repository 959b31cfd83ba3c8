package trade

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/swaply-api/internal/events"
	"github.com/rajivgeraev/swaply-api/internal/models"
)

// eventCollector копит опубликованные события: шина доставляет их
// в горутинах, поэтому сбор идет через канал
type eventCollector struct {
	ch chan events.Event
}

func collectEvents(bus *events.Bus) *eventCollector {
	c := &eventCollector{ch: make(chan events.Event, 64)}
	bus.Subscribe(func(e events.Event) {
		c.ch <- e
	})
	return c
}

// wait забирает ровно n событий или падает по таймауту
func (c *eventCollector) wait(t *testing.T, n int) []events.Event {
	t.Helper()
	out := make([]events.Event, 0, n)
	deadline := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case e := <-c.ch:
			out = append(out, e)
		case <-deadline:
			t.Fatalf("ожидалось %d событий, получено %d", n, len(out))
		}
	}
	return out
}

type fixture struct {
	store   *memStore
	manager *Manager
	events  *eventCollector

	alice *models.User
	bob   *models.User
	carol *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	bus := events.NewBus()
	return &fixture{
		store:   store,
		manager: NewManager(store, bus),
		events:  collectEvents(bus),
		alice:   store.addUser("alice"),
		bob:     store.addUser("bob"),
		carol:   store.addUser("carol"),
	}
}

func (f *fixture) propose(t *testing.T, requester *models.User, offered, requested *models.Item) *models.Trade {
	t.Helper()
	trade, err := f.manager.Propose(context.Background(), models.TradeProposal{
		RequesterID:     requester.ID,
		OfferedItemID:   offered.ID,
		RequestedItemID: requested.ID,
	})
	require.NoError(t, err)
	return trade
}

func TestProposeCreatesPendingTrade(t *testing.T) {
	f := newFixture(t)
	offered := f.store.addItem(f.alice, "кукла")
	requested := f.store.addItem(f.bob, "конструктор")

	trade, err := f.manager.Propose(context.Background(), models.TradeProposal{
		RequesterID:     f.alice.ID,
		OfferedItemID:   offered.ID,
		RequestedItemID: requested.ID,
		Comment:         "махнемся?",
	})
	require.NoError(t, err)

	assert.Equal(t, models.TradePending, trade.Status)
	assert.Equal(t, f.alice.ID, trade.RequesterID)
	assert.Equal(t, f.bob.ID, trade.ResponderID) // получатель выводится из владельца вещи
	assert.Equal(t, "махнемся?", trade.Comment)

	got := f.events.wait(t, 1)
	assert.Equal(t, events.TypeTradeProposed, got[0].Type)
	assert.Equal(t, trade.ID, got[0].TradeID)
	assert.Equal(t, f.alice.ID, got[0].ActorID)
}

func TestProposeRejectsInvalidProposals(t *testing.T) {
	f := newFixture(t)
	aliceItem := f.store.addItem(f.alice, "кукла")
	aliceSecond := f.store.addItem(f.alice, "мяч")
	bobItem := f.store.addItem(f.bob, "конструктор")

	ctx := context.Background()

	t.Run("вещь сама на себя", func(t *testing.T) {
		_, err := f.manager.Propose(ctx, models.TradeProposal{
			RequesterID:     f.alice.ID,
			OfferedItemID:   aliceItem.ID,
			RequestedItemID: aliceItem.ID,
		})
		assert.True(t, models.IsCode(err, models.CodeInvalidProposal))
	})

	t.Run("чужая вещь в предложении", func(t *testing.T) {
		_, err := f.manager.Propose(ctx, models.TradeProposal{
			RequesterID:     f.alice.ID,
			OfferedItemID:   bobItem.ID,
			RequestedItemID: aliceItem.ID,
		})
		assert.True(t, models.IsCode(err, models.CodeInvalidProposal))
	})

	t.Run("обмен с самим собой", func(t *testing.T) {
		_, err := f.manager.Propose(ctx, models.TradeProposal{
			RequesterID:     f.alice.ID,
			OfferedItemID:   aliceItem.ID,
			RequestedItemID: aliceSecond.ID,
		})
		assert.True(t, models.IsCode(err, models.CodeInvalidProposal))
	})

	t.Run("несуществующая вещь", func(t *testing.T) {
		_, err := f.manager.Propose(ctx, models.TradeProposal{
			RequesterID:     f.alice.ID,
			OfferedItemID:   aliceItem.ID,
			RequestedItemID: uuid.New(),
		})
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})
}

func TestProposeDuplicatePending(t *testing.T) {
	f := newFixture(t)
	offered := f.store.addItem(f.alice, "кукла")
	requested := f.store.addItem(f.bob, "конструктор")

	f.propose(t, f.alice, offered, requested)

	_, err := f.manager.Propose(context.Background(), models.TradeProposal{
		RequesterID:     f.alice.ID,
		OfferedItemID:   offered.ID,
		RequestedItemID: requested.ID,
	})
	assert.True(t, models.IsCode(err, models.CodeAlreadyExists))
}

// Ожидающее предложение не резервирует вещи: несколько предложений
// на одну и ту же вещь сосуществуют до первого принятия
func TestPendingDoesNotReserveItems(t *testing.T) {
	f := newFixture(t)
	bobItem := f.store.addItem(f.bob, "конструктор")
	aliceItem := f.store.addItem(f.alice, "кукла")
	carolItem := f.store.addItem(f.carol, "книга")

	f.propose(t, f.alice, aliceItem, bobItem)
	f.propose(t, f.carol, carolItem, bobItem)

	available, err := f.manager.IsItemAvailable(context.Background(), bobItem.ID)
	require.NoError(t, err)
	assert.True(t, available)
}

func TestAcceptCascadesAndMarksItems(t *testing.T) {
	f := newFixture(t)
	aliceItem := f.store.addItem(f.alice, "кукла")
	bobItem := f.store.addItem(f.bob, "конструктор")
	carolItem := f.store.addItem(f.carol, "книга")

	puzzle := f.store.addItem(f.bob, "пазл")

	// Три ожидающих предложения, затрагивающих вещи принятого обмена:
	// winner связывает aliceItem и bobItem, пересекающиеся должны отлететь
	winner := f.propose(t, f.alice, aliceItem, bobItem)
	rival := f.propose(t, f.carol, carolItem, bobItem)  // претендует на bobItem
	touching := f.propose(t, f.bob, bobItem, carolItem) // предлагает bobItem
	unrelated := f.propose(t, f.carol, carolItem, puzzle)

	updated, err := f.manager.Accept(context.Background(), winner.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeAccepted, updated.Status)

	// Пересекающиеся предложения каскадно отклонены
	for _, id := range []uuid.UUID{rival.ID, touching.ID} {
		got, err := f.store.GetTrade(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, models.TradeRejected, got.Status, "обмен %s", id)
	}

	// Вещи принятого обмена помечены обмененными
	assert.Equal(t, models.ItemStatusTraded, f.store.itemStatus(aliceItem.ID))
	assert.Equal(t, models.ItemStatusTraded, f.store.itemStatus(bobItem.ID))

	// Доступность после принятия
	for _, id := range []uuid.UUID{aliceItem.ID, bobItem.ID} {
		available, err := f.manager.IsItemAvailable(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, available)
	}

	// Непересекающееся предложение осталось в ожидании
	got, err := f.store.GetTrade(context.Background(), unrelated.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradePending, got.Status)
}

func TestAcceptPublishesCascadeEvents(t *testing.T) {
	f := newFixture(t)
	aliceItem := f.store.addItem(f.alice, "кукла")
	bobItem := f.store.addItem(f.bob, "конструктор")
	carolItem := f.store.addItem(f.carol, "книга")

	winner := f.propose(t, f.alice, aliceItem, bobItem)
	rival := f.propose(t, f.carol, carolItem, bobItem)
	f.events.wait(t, 2) // события trade_proposed

	_, err := f.manager.Accept(context.Background(), winner.ID, f.bob.ID)
	require.NoError(t, err)

	got := f.events.wait(t, 2)
	byTrade := map[uuid.UUID]events.Event{}
	for _, e := range got {
		byTrade[e.TradeID] = e
	}

	accepted := byTrade[winner.ID]
	assert.Equal(t, events.TypeTradeAccepted, accepted.Type)
	assert.Equal(t, models.TradePending, accepted.OldStatus)
	assert.Equal(t, models.TradeAccepted, accepted.NewStatus)
	assert.Equal(t, f.bob.ID, accepted.ActorID)

	// Каскадное отклонение — без инициатора: уведомляются обе стороны
	cascade := byTrade[rival.ID]
	assert.Equal(t, events.TypeTradeRejected, cascade.Type)
	assert.Equal(t, models.TradeRejected, cascade.NewStatus)
	assert.Equal(t, uuid.Nil, cascade.ActorID)
	assert.Len(t, cascade.Recipients(), 2)
}

func TestTransitionAuthorization(t *testing.T) {
	f := newFixture(t)
	aliceItem := f.store.addItem(f.alice, "кукла")
	bobItem := f.store.addItem(f.bob, "конструктор")

	ctx := context.Background()

	t.Run("принять может только получатель", func(t *testing.T) {
		trade := f.propose(t, f.alice, aliceItem, bobItem)
		_, err := f.manager.Accept(ctx, trade.ID, f.alice.ID)
		assert.True(t, models.IsCode(err, models.CodeForbidden))

		_, err = f.manager.Accept(ctx, trade.ID, f.carol.ID)
		assert.True(t, models.IsCode(err, models.CodeForbidden))

		_, err = f.manager.Cancel(ctx, trade.ID, f.alice.ID)
		require.NoError(t, err)
	})

	t.Run("отменить может только инициатор", func(t *testing.T) {
		trade := f.propose(t, f.alice, aliceItem, bobItem)
		_, err := f.manager.Cancel(ctx, trade.ID, f.bob.ID)
		assert.True(t, models.IsCode(err, models.CodeForbidden))

		_, err = f.manager.Reject(ctx, trade.ID, f.bob.ID)
		require.NoError(t, err)
	})
}

func TestTerminalStatusesAreAbsorbing(t *testing.T) {
	f := newFixture(t)
	aliceItem := f.store.addItem(f.alice, "кукла")
	bobItem := f.store.addItem(f.bob, "конструктор")

	ctx := context.Background()

	trade := f.propose(t, f.alice, aliceItem, bobItem)
	_, err := f.manager.Reject(ctx, trade.ID, f.bob.ID)
	require.NoError(t, err)

	_, err = f.manager.Accept(ctx, trade.ID, f.bob.ID)
	assert.True(t, models.IsCode(err, models.CodeInvalidState))

	_, err = f.manager.Cancel(ctx, trade.ID, f.alice.ID)
	assert.True(t, models.IsCode(err, models.CodeInvalidState))

	// Отклонение освобождает вещи
	for _, id := range []uuid.UUID{aliceItem.ID, bobItem.ID} {
		available, err := f.manager.IsItemAvailable(ctx, id)
		require.NoError(t, err)
		assert.True(t, available)
	}
}

// При одновременных попытках принятия выигрывает ровно одна:
// проигравшие получают INVALID_STATE
func TestConcurrentAcceptsSingleWinner(t *testing.T) {
	f := newFixture(t)
	bobItem := f.store.addItem(f.bob, "конструктор")

	// Десять конкурирующих предложений на одну вещь Боба
	trades := make([]*models.Trade, 10)
	for i := range trades {
		requester := f.store.addUser("user")
		item := f.store.addItem(requester, "вещь")
		trades[i] = f.propose(t, requester, item, bobItem)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(trades))
	for i, tr := range trades {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.manager.Accept(context.Background(), id, f.bob.ID)
		}(i, tr.ID)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, models.IsCode(err, models.CodeInvalidState), "неожиданная ошибка: %v", err)
	}
	assert.Equal(t, 1, winners)
}

func TestPendingCountAndList(t *testing.T) {
	f := newFixture(t)
	bobItem := f.store.addItem(f.bob, "конструктор")
	bobSecond := f.store.addItem(f.bob, "пазл")
	aliceItem := f.store.addItem(f.alice, "кукла")
	carolItem := f.store.addItem(f.carol, "книга")

	ctx := context.Background()

	first := f.propose(t, f.alice, aliceItem, bobItem)
	second := f.propose(t, f.carol, carolItem, bobSecond)

	count, err := f.manager.PendingCount(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	pending, err := f.manager.ListPendingFor(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	// Новые первыми
	assert.Equal(t, second.ID, pending[0].ID)
	assert.Equal(t, first.ID, pending[1].ID)

	// Счетчик — чистый запрос: после отклонения уменьшается
	_, err = f.manager.Reject(ctx, first.ID, f.bob.ID)
	require.NoError(t, err)

	count, err = f.manager.PendingCount(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// У инициатора входящих нет
	count, err = f.manager.PendingCount(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestGetTradeForParty(t *testing.T) {
	f := newFixture(t)
	aliceItem := f.store.addItem(f.alice, "кукла")
	bobItem := f.store.addItem(f.bob, "конструктор")

	trade := f.propose(t, f.alice, aliceItem, bobItem)
	ctx := context.Background()

	for _, u := range []*models.User{f.alice, f.bob} {
		got, err := f.manager.GetTradeFor(ctx, trade.ID, u.ID)
		require.NoError(t, err)
		assert.Equal(t, trade.ID, got.ID)
	}

	_, err := f.manager.GetTradeFor(ctx, trade.ID, f.carol.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	_, err = f.manager.GetTradeFor(ctx, uuid.New(), f.alice.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestMessagesWithinTrade(t *testing.T) {
	f := newFixture(t)
	aliceItem := f.store.addItem(f.alice, "кукла")
	bobItem := f.store.addItem(f.bob, "конструктор")

	trade := f.propose(t, f.alice, aliceItem, bobItem)
	ctx := context.Background()

	_, err := f.manager.PostMessage(ctx, trade.ID, f.alice.ID, "привет!")
	require.NoError(t, err)
	_, err = f.manager.PostMessage(ctx, trade.ID, f.bob.ID, "привет, согласен")
	require.NoError(t, err)

	// Посторонний не пишет и не читает
	_, err = f.manager.PostMessage(ctx, trade.ID, f.carol.ID, "а меня возьмете?")
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	_, err = f.manager.ListMessages(ctx, trade.ID, f.carol.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	msgs, err := f.manager.ListMessages(ctx, trade.ID, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	// По возрастанию времени
	assert.Equal(t, "привет!", msgs[0].Content)
	assert.Equal(t, "привет, согласен", msgs[1].Content)

	// После принятия переписка продолжается
	_, err = f.manager.Accept(ctx, trade.ID, f.bob.ID)
	require.NoError(t, err)
	_, err = f.manager.PostMessage(ctx, trade.ID, f.alice.ID, "куда привезти?")
	require.NoError(t, err)
}

func TestMessagesClosedAfterRejectOrCancel(t *testing.T) {
	f := newFixture(t)
	aliceItem := f.store.addItem(f.alice, "кукла")
	bobItem := f.store.addItem(f.bob, "конструктор")

	ctx := context.Background()

	rejected := f.propose(t, f.alice, aliceItem, bobItem)
	_, err := f.manager.Reject(ctx, rejected.ID, f.bob.ID)
	require.NoError(t, err)
	_, err = f.manager.PostMessage(ctx, rejected.ID, f.alice.ID, "жаль")
	assert.True(t, models.IsCode(err, models.CodeInvalidState))

	cancelled := f.propose(t, f.alice, aliceItem, bobItem)
	_, err = f.manager.Cancel(ctx, cancelled.ID, f.alice.ID)
	require.NoError(t, err)
	_, err = f.manager.PostMessage(ctx, cancelled.ID, f.bob.ID, "передумал?")
	assert.True(t, models.IsCode(err, models.CodeInvalidState))

	// Читать историю по-прежнему можно
	_, err = f.manager.ListMessages(ctx, rejected.ID, f.alice.ID)
	assert.NoError(t, err)
}

func TestNewMessagePublishesEvent(t *testing.T) {
	f := newFixture(t)
	aliceItem := f.store.addItem(f.alice, "кукла")
	bobItem := f.store.addItem(f.bob, "конструктор")

	trade := f.propose(t, f.alice, aliceItem, bobItem)
	f.events.wait(t, 1)

	msg, err := f.manager.PostMessage(context.Background(), trade.ID, f.alice.ID, "привет!")
	require.NoError(t, err)

	got := f.events.wait(t, 1)
	assert.Equal(t, events.TypeNewMessage, got[0].Type)
	assert.Equal(t, trade.ID, got[0].TradeID)
	assert.Equal(t, msg.ID, got[0].MessageID)
	// Уведомляется только собеседник
	require.Len(t, got[0].Recipients(), 1)
	assert.Equal(t, f.bob.ID, got[0].Recipients()[0])
}

