package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/app"
)

const (
	actionsBuffer = 32
	writeWait     = time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// ActionsHandler streams frame results to websocket clients. With
// ?changes=1 only results whose action differs from the previous one sent
// are written.
type ActionsHandler struct {
	publisher *app.Publisher
	log       logrus.FieldLogger
}

// NewActionsHandler creates an ActionsHandler fed by publisher.
func NewActionsHandler(publisher *app.Publisher, log logrus.FieldLogger) *ActionsHandler {
	return &ActionsHandler{publisher: publisher, log: log}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *ActionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	changesOnly := r.URL.Query().Get("changes") == "1"

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	results, unsubscribe := h.publisher.Subscribe(actionsBuffer)
	defer unsubscribe()

	// Drain client messages so close frames are noticed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.log.WithField("remote", r.RemoteAddr).Debug("actions client connected")
	last := -1
	for {
		select {
		case <-closed:
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			if changesOnly && res.Action == last {
				continue
			}
			last = res.Action

			msg, err := json.Marshal(res)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.WithError(err).Debug("actions client gone")
				return
			}
		}
	}
}
