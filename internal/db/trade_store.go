package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajivgeraev/swaply-api/internal/models"
)

// TradeStore — хранилище ядра обменов поверх Postgres. Все переходы
// статусов выполняются в одной транзакции с блокировкой строки обмена,
// чтобы из двух конкурирующих принятий выигрывало ровно одно.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore создает новый экземпляр TradeStore
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeColumns = `id, requester_id, responder_id, offered_item_id, requested_item_id, status, COALESCE(comment, ''), created_at, updated_at`

func scanTrade(row pgx.Row) (*models.Trade, error) {
	var t models.Trade
	err := row.Scan(
		&t.ID,
		&t.RequesterID,
		&t.ResponderID,
		&t.OfferedItemID,
		&t.RequestedItemID,
		&t.Status,
		&t.Comment,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTrade возвращает обмен по ID
func (s *TradeStore) GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	trade, err := scanTrade(s.pool.QueryRow(ctx, `
		SELECT `+tradeColumns+` FROM trades WHERE id = $1
	`, id))

	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound("предложение обмена не найдено")
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе обмена: %w", err)
	}
	return trade, nil
}

// GetItem возвращает вещь по ID вместе с изображениями
func (s *TradeStore) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, title, description, category, status, created_at, updated_at
		FROM items
		WHERE id = $1 AND status != 'deleted'
	`, id).Scan(
		&item.ID,
		&item.UserID,
		&item.Title,
		&item.Description,
		&item.Category,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound("вещь не найдена")
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе вещи: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, item_id, url, COALESCE(preview_url, ''), public_id, is_main, position, created_at
		FROM item_images
		WHERE item_id = $1
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе изображений: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img models.ItemImage
		if err := rows.Scan(&img.ID, &img.ItemID, &img.URL, &img.PreviewURL, &img.PublicID, &img.IsMain, &img.Position, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования изображения: %w", err)
		}
		item.Images = append(item.Images, img)
	}

	return &item, nil
}

// GetUser возвращает публичный профиль пользователя
func (s *TradeStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, COALESCE(avatar_url, '') FROM users WHERE id = $1
	`, id).Scan(&user.ID, &user.Username, &user.AvatarURL)

	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound("пользователь не найден")
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе пользователя: %w", err)
	}
	return &user, nil
}

// IsItemAvailable вычисляет доступность вещи: вещь активна и не участвует
// ни в одном принятом обмене. Предикат производный от записей обменов —
// отдельного изменяемого флага доступности нет.
func (s *TradeStore) IsItemAvailable(ctx context.Context, id uuid.UUID) (bool, error) {
	var available bool
	err := s.pool.QueryRow(ctx, `
		SELECT i.status = 'active' AND NOT EXISTS (
			SELECT 1 FROM trades t
			WHERE t.status = 'accepted'
			  AND (t.offered_item_id = i.id OR t.requested_item_id = i.id)
		)
		FROM items i
		WHERE i.id = $1 AND i.status != 'deleted'
	`, id).Scan(&available)

	if err == pgx.ErrNoRows {
		return false, models.ErrNotFound("вещь не найдена")
	}
	if err != nil {
		return false, fmt.Errorf("ошибка при проверке доступности вещи: %w", err)
	}
	return available, nil
}

// HasPendingDuplicate проверяет, нет ли уже ожидающего предложения
// с той же парой вещей между теми же участниками
func (s *TradeStore) HasPendingDuplicate(ctx context.Context, p models.TradeProposal, responderID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM trades
			WHERE requester_id = $1 AND responder_id = $2
			  AND offered_item_id = $3 AND requested_item_id = $4
			  AND status = 'pending'
		)
	`, p.RequesterID, responderID, p.OfferedItemID, p.RequestedItemID).Scan(&exists)

	if err != nil {
		return false, fmt.Errorf("ошибка при проверке существующих предложений: %w", err)
	}
	return exists, nil
}

// CreateTrade сохраняет новое предложение обмена
func (s *TradeStore) CreateTrade(ctx context.Context, t *models.Trade) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO trades (id, requester_id, responder_id, offered_item_id, requested_item_id, status, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, t.ID, t.RequesterID, t.ResponderID, t.OfferedItemID, t.RequestedItemID, t.Status, t.Comment).Scan(&t.CreatedAt, &t.UpdatedAt)

	if err != nil {
		// Конкурирующее дублирующее предложение может проскочить мимо
		// HasPendingDuplicate и упереться в частичный уникальный индекс
		if isUniqueViolation(err) {
			return models.ErrAlreadyExists("такое предложение обмена уже существует")
		}
		return fmt.Errorf("ошибка при создании предложения обмена: %w", err)
	}
	return nil
}

// Максимум повторов транзакции перехода при дедлоке каскада
const maxTransitionRetries = 3

// Transition атомарно переводит обмен из pending в next. При принятии в той
// же транзакции каскадно отклоняются остальные ожидающие предложения на обе
// вещи и сами вещи помечаются обменянными. Возвращает обновлённый обмен и
// каскадно отклонённые обмены.
//
// Два одновременных принятия разных обменов с общей вещью могут дедлокнуться:
// каждая транзакция держит FOR UPDATE своей строки и ждёт строку соседа в
// каскадном UPDATE. Postgres снимает одну из них (40P01); повтор перечитывает
// уже не-pending статус и возвращает INVALID_STATE.
func (s *TradeStore) Transition(ctx context.Context, tradeID uuid.UUID, next models.TradeStatus) (*models.Trade, []models.Trade, error) {
	return withTransitionRetry(func() (*models.Trade, []models.Trade, error) {
		return s.transition(ctx, tradeID, next)
	})
}

func withTransitionRetry(fn func() (*models.Trade, []models.Trade, error)) (*models.Trade, []models.Trade, error) {
	var lastErr error
	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		trade, cascaded, err := fn()
		if err == nil || !isRetryableTxError(err) {
			return trade, cascaded, err
		}
		lastErr = err
	}
	return nil, nil, lastErr
}

func (s *TradeStore) transition(ctx context.Context, tradeID uuid.UUID, next models.TradeStatus) (*models.Trade, []models.Trade, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем строку обмена. Конкурирующий переход будет ждать здесь и
	// после фиксации нашей транзакции увидит уже не-pending статус.
	trade, err := scanTrade(tx.QueryRow(ctx, `
		SELECT `+tradeColumns+` FROM trades WHERE id = $1 FOR UPDATE
	`, tradeID))

	if err == pgx.ErrNoRows {
		return nil, nil, models.ErrNotFound("предложение обмена не найдено")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка при запросе обмена: %w", err)
	}

	if !trade.Status.CanTransitionTo(next) {
		return nil, nil, models.ErrInvalidState("предложение уже не находится в ожидании")
	}

	now := time.Now()
	var cascaded []models.Trade

	if next == models.TradeAccepted {
		itemIDs := []uuid.UUID{trade.OfferedItemID, trade.RequestedItemID}

		// Обе вещи обязаны быть доступны в момент принятия
		var blocked bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM trades
				WHERE status = 'accepted'
				  AND (offered_item_id = ANY($1) OR requested_item_id = ANY($1))
			) OR EXISTS(
				SELECT 1 FROM items WHERE id = ANY($1) AND status != 'active'
			)
		`, itemIDs).Scan(&blocked)
		if err != nil {
			return nil, nil, fmt.Errorf("ошибка при проверке доступности вещей: %w", err)
		}
		if blocked {
			return nil, nil, models.ErrInvalidState("одна из вещей уже недоступна для обмена")
		}

		// Каскад: все прочие ожидающие предложения на любую из двух вещей
		// автоматически отклоняются в этой же транзакции
		rows, err := tx.Query(ctx, `
			UPDATE trades
			SET status = 'rejected', updated_at = $2
			WHERE status = 'pending' AND id != $1
			  AND (offered_item_id = ANY($3) OR requested_item_id = ANY($3))
			RETURNING `+tradeColumns+`
		`, tradeID, now, itemIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("ошибка каскадного отклонения: %w", err)
		}
		for rows.Next() {
			t, err := scanTrade(rows)
			if err != nil {
				rows.Close()
				return nil, nil, fmt.Errorf("ошибка сканирования обмена: %w", err)
			}
			cascaded = append(cascaded, *t)
		}
		rows.Close()

		// Физический флаг на вещах обновляется в той же единице работы
		_, err = tx.Exec(ctx, `
			UPDATE items SET status = 'traded', updated_at = $2 WHERE id = ANY($1)
		`, itemIDs, now)
		if err != nil {
			return nil, nil, fmt.Errorf("ошибка при пометке вещей обменянными: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE trades SET status = $2, updated_at = $3 WHERE id = $1
	`, tradeID, next, now)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка обновления статуса предложения: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	trade.Status = next
	trade.UpdatedAt = now

	return trade, cascaded, nil
}

// isRetryableTxError распознаёт дедлок (40P01) и сбой сериализации (40001) —
// транзакцию безопасно повторить целиком
func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40P01" || pgErr.Code == "40001"
}

// isUniqueViolation распознаёт нарушение уникального ограничения (23505)
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ListTrades возвращает обмены пользователя с фильтрами по роли и статусу,
// отсортированные по времени создания по убыванию
func (s *TradeStore) ListTrades(ctx context.Context, userID uuid.UUID, role string, status models.TradeStatus) ([]models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE `
	args := []interface{}{userID}

	switch role {
	case "incoming":
		query += `responder_id = $1`
	case "outgoing":
		query += `requester_id = $1`
	default:
		query += `(requester_id = $1 OR responder_id = $1)`
	}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса предложений обмена: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования обмена: %w", err)
		}
		trades = append(trades, *t)
	}

	return trades, nil
}

// CountPendingFor считает входящие ожидающие предложения пользователя.
// Значение для бейджа всегда вычисляется заново, без кеша.
func (s *TradeStore) CountPendingFor(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM trades WHERE responder_id = $1 AND status = 'pending'
	`, userID).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета ожидающих предложений: %w", err)
	}
	return count, nil
}

// CreateMessage сохраняет сообщение в переписке обмена
func (s *TradeStore) CreateMessage(ctx context.Context, m *models.Message) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, trade_id, sender_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, m.ID, m.TradeID, m.SenderID, m.Content).Scan(&m.CreatedAt)

	if err != nil {
		return fmt.Errorf("ошибка при создании сообщения: %w", err)
	}
	return nil
}

// ListMessages возвращает сообщения обмена по возрастанию времени создания
func (s *TradeStore) ListMessages(ctx context.Context, tradeID uuid.UUID) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, trade_id, sender_id, content, created_at
		FROM messages
		WHERE trade_id = $1
		ORDER BY created_at ASC, id ASC
	`, tradeID)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса сообщений: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.TradeID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сообщения: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, nil
}
