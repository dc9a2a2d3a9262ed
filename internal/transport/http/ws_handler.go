package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quiz-battle-service/internal/app"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type WSHandler struct {
	service  *app.BattleService
	upgrader websocket.Upgrader
	ticker   app.TickerFunc
	logger   zerolog.Logger
}

func NewWSHandler(service *app.BattleService, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ticker: app.RealTicker,
		logger: logger,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	OptionIndex *int `json:"optionIndex"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS runs one battle driver per connection. Every state change is pushed as a "view";
// inbound accept/decline/answer/next messages are forwarded to the driver.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	caller, ok := IdentityFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing user identity"})
		return
	}
	battleID := mux.Vars(r)["id"]
	log := h.logger.With().Str("battle_id", battleID).Str("user_id", caller.ID).Logger()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	driver, err := h.service.Open(ctx, battleID, caller.ID, h.ticker)
	if err != nil {
		writeError(w, log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		// Run owns the subscription cleanup
		go func() { _ = driver.Run(ctx) }()
		return
	}

	runDone := make(chan error, 1)
	go func() { runDone <- driver.Run(ctx) }()

	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})
	go h.writePump(conn, driver.Views(), send, writerDone, log)

	reply := func(msg outboundMessage) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "accept":
			if err := driver.Accept(ctx); err != nil {
				reply(errorMessage(err))
			}
		case "decline":
			if err := driver.Decline(ctx); err != nil {
				reply(errorMessage(err))
			}
		case "next":
			if err := driver.Next(ctx); err != nil {
				reply(errorMessage(err))
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.OptionIndex == nil {
				reply(outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			verdict, err := driver.Answer(ctx, *payload.OptionIndex)
			if err != nil {
				reply(errorMessage(err))
				continue
			}
			reply(outboundMessage{Type: "answerResult", Payload: verdict})
		default:
			reply(outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	cancel()
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		log.Debug().Err(err).Msg("battle driver stopped")
	}
	<-writerDone
}

// writePump is the only writer on conn. It ends when the driver closes its views.
func (h *WSHandler) writePump(conn *websocket.Conn, views <-chan app.View, send <-chan outboundMessage, done chan<- struct{}, log zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		close(done)
	}()

	write := func(msg outboundMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Debug().Err(err).Msg("ws write error")
			return false
		}
		return true
	}

	for {
		select {
		case view, ok := <-views:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if !write(outboundMessage{Type: "view", Payload: view}) {
				return
			}
		case msg := <-send:
			if !write(msg) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func errorMessage(err error) outboundMessage {
	_, msg := statusFor(err)
	return outboundMessage{Type: "error", Payload: errorPayload{Message: msg}}
}
