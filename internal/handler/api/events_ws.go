package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"RiskPulse/internal/usecase"
	xhttp "RiskPulse/pkg/http"
	xlogger "RiskPulse/pkg/logger"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventsHandler streams bus events to websocket clients. Slow clients lose
// events instead of stalling the orchestrator.
type EventsHandler struct {
	logger *xlogger.Logger
	bus    *usecase.EventBus
}

func NewEventsHandler(logger *xlogger.Logger, bus *usecase.EventBus) *EventsHandler {
	return &EventsHandler{logger: logger, bus: bus}
}

func (h *EventsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/events", h.Stream)
}

// parseEventTypes reads ?types=a,b. Unknown names are rejected; empty means all.
func parseEventTypes(raw string) ([]usecase.EventType, bool) {
	if raw == "" {
		return nil, true
	}
	known := make(map[usecase.EventType]struct{}, len(usecase.EventTypes))
	for _, t := range usecase.EventTypes {
		known[t] = struct{}{}
	}
	var out []usecase.EventType
	for _, part := range strings.Split(raw, ",") {
		t := usecase.EventType(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if _, ok := known[t]; !ok {
			return nil, false
		}
		out = append(out, t)
	}
	return out, true
}

func (h *EventsHandler) Stream(c echo.Context) error {
	types, ok := parseEventTypes(c.QueryParam("types"))
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("unknown event type in %q", c.QueryParam("types")))
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	sub := h.bus.SubscribeChan(wsBuffer, types...)
	defer sub.Unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("websocket read error", xlogger.Error(err))
				}
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("websocket write failed", xlogger.Error(err))
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			return nil
		case <-c.Request().Context().Done():
			return nil
		}
	}
}
