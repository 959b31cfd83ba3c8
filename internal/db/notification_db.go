package db

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/rajivgeraev/swaply-api/internal/models"
)

// CreateNotification сохраняет уведомление для пользователя
func CreateNotification(n *models.Notification) error {
	ctx, cancel := GetContext()
	defer cancel()

	err := Pool.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, trade_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, n.ID, n.UserID, n.Type, n.TradeID).Scan(&n.CreatedAt)

	if err != nil {
		return fmt.Errorf("ошибка при создании уведомления: %w", err)
	}
	return nil
}

// ListNotifications возвращает уведомления пользователя, новые первыми
func ListNotifications(userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	ctx, cancel := GetContext()
	defer cancel()

	rows, err := Pool.Query(ctx, `
		SELECT id, user_id, type, COALESCE(trade_id, '00000000-0000-0000-0000-000000000000'), is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса уведомлений: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.TradeID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования уведомления: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, nil
}

// CountUnreadNotifications считает непрочитанные уведомления пользователя
func CountUnreadNotifications(userID uuid.UUID) (int, error) {
	ctx, cancel := GetContext()
	defer cancel()

	var count int
	err := Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read
	`, userID).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета непрочитанных уведомлений: %w", err)
	}
	return count, nil
}

// MarkNotificationRead помечает уведомление прочитанным. Возвращает false,
// если уведомление не найдено или принадлежит другому пользователю.
func MarkNotificationRead(userID, notificationID uuid.UUID) (bool, error) {
	ctx, cancel := GetContext()
	defer cancel()

	tag, err := Pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2
	`, notificationID, userID)

	if err != nil {
		return false, fmt.Errorf("ошибка при пометке уведомления прочитанным: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
