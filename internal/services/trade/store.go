package trade

import (
	"context"

	"github.com/google/uuid"

	"github.com/rajivgeraev/swaply-api/internal/models"
)

// Store — контракт персистентности для ядра обменов. Реализация обязана
// обеспечивать атомарность Transition: смена статуса, каскадное отклонение
// и пометка вещей происходят в одной единице работы, а конкурирующие
// переходы одного обмена сериализуются.
type Store interface {
	GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)

	// IsItemAvailable — производный предикат доступности: вещь активна
	// и не участвует ни в одном принятом обмене
	IsItemAvailable(ctx context.Context, id uuid.UUID) (bool, error)

	HasPendingDuplicate(ctx context.Context, p models.TradeProposal, responderID uuid.UUID) (bool, error)
	CreateTrade(ctx context.Context, t *models.Trade) error

	// Transition атомарно переводит обмен из pending в next. Возвращает
	// обновлённый обмен и каскадно отклонённые ожидающие обмены (каскад
	// возможен только при next == accepted). Если обмен уже не pending,
	// возвращает ошибку с кодом INVALID_STATE.
	Transition(ctx context.Context, tradeID uuid.UUID, next models.TradeStatus) (*models.Trade, []models.Trade, error)

	ListTrades(ctx context.Context, userID uuid.UUID, role string, status models.TradeStatus) ([]models.Trade, error)
	CountPendingFor(ctx context.Context, userID uuid.UUID) (int, error)

	CreateMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, tradeID uuid.UUID) ([]models.Message, error)
}
