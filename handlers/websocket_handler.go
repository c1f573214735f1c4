package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/matchday/live"
	"github.com/Dosada05/matchday/services"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin проверяет CORS-слой; подключение без токена всё равно не пройдёт Authenticate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WebSocketHandler struct {
	hub            *live.Hub
	fixtureService services.FixtureService
	logger         *slog.Logger
}

func NewWebSocketHandler(hub *live.Hub, fs services.FixtureService, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, fixtureService: fs, logger: logger}
}

// ServeWs подписывает клиента на обновления матча: /ws/fixtures/{fixtureID}.
// Комната привязана к клубу из токена, чужой матч вернёт 404 ещё до апгрейда.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	tenantID, fixtureID, ok := tenantAndID(w, r, "fixtureID")
	if !ok {
		return
	}
	if _, err := h.fixtureService.GetFixture(r.Context(), tenantID, fixtureID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP ошибку клиенту, так что здесь просто логируем.
		h.logger.WarnContext(r.Context(), "Failed to upgrade websocket connection",
			slog.Int("tenant_id", int(tenantID)), slog.Int("fixture_id", fixtureID), slog.Any("error", err))
		return
	}

	room := live.FixtureRoom(tenantID, fixtureID)
	h.logger.InfoContext(r.Context(), "WebSocket client joined", slog.String("room", room))
	h.hub.Serve(conn, room)
}
