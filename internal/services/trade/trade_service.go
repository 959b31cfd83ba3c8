package trade

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/swaply-api/internal/config"
	"github.com/rajivgeraev/swaply-api/internal/models"
	"github.com/rajivgeraev/swaply-api/internal/utils"
)

// TradeService представляет HTTP-сервис для работы с обменами
type TradeService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	manager    *Manager
}

// NewTradeService создает новый экземпляр TradeService
func NewTradeService(cfg *config.Config, manager *Manager) *TradeService {
	return &TradeService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		manager:    manager,
	}
}

// actorID извлекает UUID авторизованного пользователя из контекста запроса
func actorID(c fiber.Ctx) (uuid.UUID, error) {
	userID, _ := c.Locals("userID").(string)
	return uuid.Parse(userID)
}

// CreateTrade создает новое предложение обмена
func (s *TradeService) CreateTrade(c fiber.Ctx) error {
	requesterID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	var requestData struct {
		OfferedItemID   string `json:"offered_item_id"`
		RequestedItemID string `json:"requested_item_id"`
		Comment         string `json:"comment"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	if requestData.OfferedItemID == "" || requestData.RequestedItemID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Необходимо указать ID вещей для обмена"})
	}

	offeredID, err := uuid.Parse(requestData.OfferedItemID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предлагаемой вещи"})
	}

	requestedID, err := uuid.Parse(requestData.RequestedItemID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID запрашиваемой вещи"})
	}

	trade, err := s.manager.Propose(c.Context(), models.TradeProposal{
		RequesterID:     requesterID,
		OfferedItemID:   offeredID,
		RequestedItemID: requestedID,
		Comment:         requestData.Comment,
	})
	if err != nil {
		return s.respondError(c, err, "Ошибка создания предложения обмена")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"trade":   trade,
	})
}

// GetMyTrades возвращает список входящих и исходящих предложений обмена
func (s *TradeService) GetMyTrades(c fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	tradeType := c.Query("type", "all") // all, incoming, outgoing
	statusStr := c.Query("status", "all")

	var status models.TradeStatus
	if statusStr != "all" {
		parsed, ok := models.ParseTradeStatus(statusStr)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Недопустимый статус предложения обмена"})
		}
		status = parsed
	}

	trades, err := s.manager.ListTradesFor(c.Context(), userID, tradeType, status)
	if err != nil {
		return s.respondError(c, err, "Ошибка получения предложений обмена")
	}

	for i := range trades {
		s.manager.EnrichTrade(c.Context(), &trades[i])
	}

	return c.JSON(fiber.Map{
		"trades": trades,
		"count":  len(trades),
	})
}

// GetTrade возвращает одно предложение обмена
func (s *TradeService) GetTrade(c fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предложения обмена"})
	}

	trade, err := s.manager.GetTradeFor(c.Context(), tradeID, userID)
	if err != nil {
		return s.respondError(c, err, "Ошибка получения предложения обмена")
	}

	s.manager.EnrichTrade(c.Context(), trade)
	return c.JSON(fiber.Map{"trade": trade})
}

// UpdateTradeStatus обновляет статус предложения обмена
// (принятие/отклонение/отмена)
func (s *TradeService) UpdateTradeStatus(c fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предложения обмена"})
	}

	var requestData struct {
		Status string `json:"status"` // accepted, rejected, cancelled
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	var trade *models.Trade
	switch requestData.Status {
	case string(models.TradeAccepted):
		trade, err = s.manager.Accept(c.Context(), tradeID, userID)
	case string(models.TradeRejected):
		trade, err = s.manager.Reject(c.Context(), tradeID, userID)
	case string(models.TradeCancelled):
		trade, err = s.manager.Cancel(c.Context(), tradeID, userID)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Недопустимый статус предложения обмена"})
	}

	if err != nil {
		return s.respondError(c, err, "Ошибка обновления статуса предложения")
	}

	var message string
	switch trade.Status {
	case models.TradeAccepted:
		message = "Предложение обмена принято"
	case models.TradeRejected:
		message = "Предложение обмена отклонено"
	case models.TradeCancelled:
		message = "Предложение обмена отменено"
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"message":  message,
		"trade_id": trade.ID,
		"status":   trade.Status,
	})
}

// GetPendingCount возвращает число входящих ожидающих предложений для бейджа
func (s *TradeService) GetPendingCount(c fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	count, err := s.manager.PendingCount(c.Context(), userID)
	if err != nil {
		return s.respondError(c, err, "Ошибка подсчета предложений")
	}

	return c.JSON(fiber.Map{"count": count})
}

// CheckItemAvailability сообщает, доступна ли вещь для обмена прямо сейчас
func (s *TradeService) CheckItemAvailability(c fiber.Ctx) error {
	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID вещи"})
	}

	available, err := s.manager.IsItemAvailable(c.Context(), itemID)
	if err != nil {
		return s.respondError(c, err, "Ошибка проверки доступности вещи")
	}

	return c.JSON(fiber.Map{
		"item_id":   itemID,
		"available": available,
	})
}

// GetTradeMessages возвращает переписку обмена
func (s *TradeService) GetTradeMessages(c fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предложения обмена"})
	}

	messages, err := s.manager.ListMessages(c.Context(), tradeID, userID)
	if err != nil {
		return s.respondError(c, err, "Ошибка получения сообщений")
	}

	for i := range messages {
		if sender, err := s.manager.store.GetUser(c.Context(), messages[i].SenderID); err == nil {
			messages[i].Sender = sender.PublicProfile()
		}
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"count":    len(messages),
	})
}

// SendTradeMessage отправляет сообщение в переписку обмена
func (s *TradeService) SendTradeMessage(c fiber.Ctx) error {
	userID, err := actorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предложения обмена"})
	}

	var requestData struct {
		Content string `json:"content"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	if requestData.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Текст сообщения не может быть пустым"})
	}

	message, err := s.manager.PostMessage(c.Context(), tradeID, userID, requestData.Content)
	if err != nil {
		return s.respondError(c, err, "Ошибка сохранения сообщения")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": message,
	})
}

// respondError отдает доменную ошибку клиенту, прочие ошибки логирует
func (s *TradeService) respondError(c fiber.Ctx, err error, logMsg string) error {
	if _, ok := err.(*models.AppError); !ok {
		log.Printf("%s: %v", logMsg, err)
	}
	return models.RespondWithError(c, err)
}

// EnrichTrade подгружает вещи и участников обмена для ответа API.
// Ошибки обогащения не фатальны: поля просто остаются пустыми.
func (m *Manager) EnrichTrade(ctx context.Context, t *models.Trade) {
	if item, err := m.store.GetItem(ctx, t.OfferedItemID); err == nil {
		t.OfferedItem = item
	} else {
		log.Printf("Ошибка получения вещи %s: %v", t.OfferedItemID, err)
	}
	if item, err := m.store.GetItem(ctx, t.RequestedItemID); err == nil {
		t.RequestedItem = item
	} else {
		log.Printf("Ошибка получения вещи %s: %v", t.RequestedItemID, err)
	}
	if user, err := m.store.GetUser(ctx, t.RequesterID); err == nil {
		t.Requester = user.PublicProfile()
	}
	if user, err := m.store.GetUser(ctx, t.ResponderID); err == nil {
		t.Responder = user.PublicProfile()
	}
}
