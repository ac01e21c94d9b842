package ws

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"kepler-fleet/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades GET /api/events. An optional ?camera=<id> narrows the
// stream to one camera. Replay, when set, supplies events sent right after
// connecting.
type Handler struct {
	hub    *Hub
	Replay func() []models.WorkerEvent
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cameraID := 0
	if v := r.URL.Query().Get("camera"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			http.Error(w, `{"error":"invalid camera id"}`, http.StatusBadRequest)
			return
		}
		cameraID = id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{conn: conn, cameraID: cameraID, send: make(chan []byte, sendBuffer)}
	if h.Replay != nil {
		for _, ev := range h.Replay() {
			if cameraID != 0 && ev.CameraID != cameraID {
				continue
			}
			if data, err := marshalEvent(ev); err == nil {
				select {
				case c.send <- data:
				default:
				}
			}
		}
	}
	h.hub.register(c)

	go h.hub.writePump(c)
	go h.hub.readPump(c)
}
