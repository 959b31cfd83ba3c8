package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rajivgeraev/swaply-api/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Клиенты — мобильные и веб-приложения с разных доменов
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server принимает WebSocket соединения на отдельном порту
type Server struct {
	manager    *Manager
	jwtService *utils.JWTService
}

// NewServer создает новый экземпляр Server
func NewServer(manager *Manager, jwtService *utils.JWTService) *Server {
	return &Server{
		manager:    manager,
		jwtService: jwtService,
	}
}

// HandleConnection апгрейдит HTTP-запрос до WebSocket.
// Токен передается в query-параметре, т.к. браузерный WebSocket API
// не позволяет задавать заголовки.
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "токен не указан", http.StatusUnauthorized)
		return
	}

	userID, err := s.jwtService.ExtractUserID(token)
	if err != nil {
		http.Error(w, "недействительный токен", http.StatusUnauthorized)
		return
	}

	if _, err := uuid.Parse(userID); err != nil {
		http.Error(w, "недействительный токен", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Ошибка апгрейда WebSocket: %v", err)
		return
	}

	client := NewClient(userID, conn, s.manager)
	client.Start()

	// Подтверждаем подключение
	s.manager.SendToUser(userID, Event{
		Type:      EventConnected,
		UserID:    userID,
		Timestamp: time.Now(),
	})
}

// Listen запускает HTTP-сервер для WebSocket соединений
func (s *Server) Listen(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleConnection)
	log.Printf("✅ WebSocket сервер запущен на %s", addr)
	return http.ListenAndServe(addr, mux)
}
