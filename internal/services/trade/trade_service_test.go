package trade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/swaply-api/internal/config"
	"github.com/rajivgeraev/swaply-api/internal/models"
	"github.com/rajivgeraev/swaply-api/internal/utils"
)

const testSecret = "test-secret-key"

type serviceFixture struct {
	*fixture
	app *fiber.App
	jwt *utils.JWTService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := newFixture(t)
	cfg := &config.Config{JWTSecret: testSecret}
	svc := NewTradeService(cfg, f.manager)

	app := fiber.New()
	svc.SetupRoutes(app)

	return &serviceFixture{
		fixture: f,
		app:     app,
		jwt:     utils.NewJWTService(testSecret),
	}
}

// request выполняет HTTP-запрос к тестовому приложению от имени пользователя
func (f *serviceFixture) request(t *testing.T, method, path string, user *models.User, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if user != nil {
		token, err := f.jwt.GenerateToken(user.ID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	var parsed map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed), "тело ответа: %s", raw)
	}

	return resp, parsed
}

func TestCreateTradeEndpoint(t *testing.T) {
	f := newServiceFixture(t)
	offered := f.store.addItem(f.alice, "кукла")
	requested := f.store.addItem(f.bob, "конструктор")

	resp, body := f.request(t, "POST", "/api/trades/", f.alice, fiber.Map{
		"offered_item_id":   offered.ID,
		"requested_item_id": requested.ID,
		"comment":           "махнемся?",
	})

	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	trade := body["trade"].(map[string]any)
	assert.Equal(t, "pending", trade["status"])
	assert.Equal(t, f.bob.ID.String(), trade["responder_id"])
}

func TestCreateTradeEndpointRequiresAuth(t *testing.T) {
	f := newServiceFixture(t)

	resp, _ := f.request(t, "POST", "/api/trades/", nil, fiber.Map{})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCreateTradeEndpointValidation(t *testing.T) {
	f := newServiceFixture(t)
	offered := f.store.addItem(f.alice, "кукла")

	t.Run("нет ID вещей", func(t *testing.T) {
		resp, _ := f.request(t, "POST", "/api/trades/", f.alice, fiber.Map{})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("некорректный UUID", func(t *testing.T) {
		resp, _ := f.request(t, "POST", "/api/trades/", f.alice, fiber.Map{
			"offered_item_id":   offered.ID,
			"requested_item_id": "не-uuid",
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("доменная ошибка с кодом", func(t *testing.T) {
		resp, body := f.request(t, "POST", "/api/trades/", f.alice, fiber.Map{
			"offered_item_id":   offered.ID,
			"requested_item_id": offered.ID,
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.CodeInvalidProposal, body["code"])
	})
}

func TestUpdateTradeStatusEndpoint(t *testing.T) {
	f := newServiceFixture(t)
	offered := f.store.addItem(f.alice, "кукла")
	requested := f.store.addItem(f.bob, "конструктор")
	trade := f.propose(t, f.alice, offered, requested)

	path := fmt.Sprintf("/api/trades/%s/status", trade.ID)

	t.Run("инициатору принимать нельзя", func(t *testing.T) {
		resp, body := f.request(t, "PUT", path, f.alice, fiber.Map{"status": "accepted"})
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		assert.Equal(t, models.CodeForbidden, body["code"])
	})

	t.Run("недопустимый статус", func(t *testing.T) {
		resp, _ := f.request(t, "PUT", path, f.bob, fiber.Map{"status": "pending"})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("получатель принимает", func(t *testing.T) {
		resp, body := f.request(t, "PUT", path, f.bob, fiber.Map{"status": "accepted"})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "accepted", body["status"])
	})

	t.Run("повторный переход дает конфликт", func(t *testing.T) {
		resp, body := f.request(t, "PUT", path, f.bob, fiber.Map{"status": "rejected"})
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
		assert.Equal(t, models.CodeInvalidState, body["code"])
	})

	t.Run("несуществующий обмен", func(t *testing.T) {
		missing := fmt.Sprintf("/api/trades/%s/status", uuid.New())
		resp, body := f.request(t, "PUT", missing, f.bob, fiber.Map{"status": "accepted"})
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		assert.Equal(t, models.CodeNotFound, body["code"])
	})
}

func TestGetMyTradesEndpoint(t *testing.T) {
	f := newServiceFixture(t)
	offered := f.store.addItem(f.alice, "кукла")
	requested := f.store.addItem(f.bob, "конструктор")
	f.propose(t, f.alice, offered, requested)

	resp, body := f.request(t, "GET", "/api/trades/?type=incoming&status=pending", f.bob, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])

	// Вложенные вещи подгружены
	trades := body["trades"].([]any)
	first := trades[0].(map[string]any)
	require.NotNil(t, first["offered_item"])
	assert.Equal(t, "кукла", first["offered_item"].(map[string]any)["title"])

	resp, body = f.request(t, "GET", "/api/trades/?type=incoming", f.alice, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["count"])

	resp, _ = f.request(t, "GET", "/api/trades/?status=что-то", f.alice, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPendingCountEndpoint(t *testing.T) {
	f := newServiceFixture(t)
	offered := f.store.addItem(f.alice, "кукла")
	requested := f.store.addItem(f.bob, "конструктор")
	f.propose(t, f.alice, offered, requested)

	resp, body := f.request(t, "GET", "/api/trades/pending/count", f.bob, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])
}

func TestItemAvailabilityEndpoint(t *testing.T) {
	f := newServiceFixture(t)
	offered := f.store.addItem(f.alice, "кукла")
	requested := f.store.addItem(f.bob, "конструктор")
	trade := f.propose(t, f.alice, offered, requested)

	path := fmt.Sprintf("/api/items/%s/availability", requested.ID)

	resp, body := f.request(t, "GET", path, nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["available"])

	_, err := f.manager.Accept(context.Background(), trade.ID, f.bob.ID)
	require.NoError(t, err)

	resp, body = f.request(t, "GET", path, nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["available"])
}

func TestTradeMessagesEndpoints(t *testing.T) {
	f := newServiceFixture(t)
	offered := f.store.addItem(f.alice, "кукла")
	requested := f.store.addItem(f.bob, "конструктор")
	trade := f.propose(t, f.alice, offered, requested)

	path := fmt.Sprintf("/api/trades/%s/messages", trade.ID)

	t.Run("пустое сообщение", func(t *testing.T) {
		resp, _ := f.request(t, "POST", path, f.alice, fiber.Map{"content": ""})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("отправка и чтение", func(t *testing.T) {
		resp, _ := f.request(t, "POST", path, f.alice, fiber.Map{"content": "привет!"})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)

		resp, body := f.request(t, "GET", path, f.bob, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.EqualValues(t, 1, body["count"])

		msgs := body["messages"].([]any)
		first := msgs[0].(map[string]any)
		assert.Equal(t, "привет!", first["content"])
		// Отправитель обогащен публичным профилем
		assert.Equal(t, "alice", first["sender"].(map[string]any)["username"])
	})

	t.Run("посторонний не читает переписку", func(t *testing.T) {
		resp, body := f.request(t, "GET", path, f.carol, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		assert.Equal(t, models.CodeForbidden, body["code"])
	})
}
