package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/auth"
	"quiz-duel-service/internal/domain"
)

const writeWait = 10 * time.Second

// Inbound message types.
const (
	msgRoomCreate  = "room:create"
	msgRoomJoin    = "room:join"
	msgRoomConfig  = "room:config"
	msgQueueJoin   = "queue:join"
	msgQueueLeave  = "queue:leave"
	msgPlayerReady = "player:ready"
	msgGameSubmit  = "game:submit"
	msgGameTimeout = "game:timeout"
)

type WSHandler struct {
	service  *app.MatchService
	hub      *Hub
	verifier *auth.Verifier
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler wires websocket connections into the match service. verifier
// may be nil, in which case every connection is anonymous.
func NewWSHandler(service *app.MatchService, hub *Hub, verifier *auth.Verifier, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service:  service,
		hub:      hub,
		verifier: verifier,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createPayload struct {
	domain.ModeSignature
	Solo bool `json:"solo"`
}

type configPayload struct {
	domain.ModeSignature
	Code string `json:"code"`
}

type codePayload struct {
	Code string `json:"code"`
}

type readyPayload struct {
	Code  string `json:"code"`
	Ready bool   `json:"ready"`
}

type submitPayload struct {
	Code          string `json:"code"`
	QuestionIndex int    `json:"questionIndex"`
	Answer        string `json:"answer"`
}

// ServeWS upgrades HTTP requests to websockets and routes client actions to
// the match service until the connection closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	who := h.identify(r)
	connID := uuid.NewString()
	out := h.hub.register(connID)
	h.service.Connect(who.withID(connID))
	h.log.Debug("connection opened", zap.String("conn_id", connID), zap.Bool("authenticated", who.account != nil))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case ev := <-out.send:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(ev); err != nil {
					h.log.Debug("ws write error", zap.String("conn_id", connID), zap.Error(err))
					out.close()
					return
				}
			case <-out.done:
				return
			}
		}
	}()

	// A closed client (slow consumer or failed write) also ends the read loop.
	go func() {
		<-out.done
		_ = conn.Close()
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r.Context(), connID, inbound)
	}

	h.service.Disconnect(connID)
	h.hub.unregister(connID)
	<-writerDone
	h.log.Debug("connection closed", zap.String("conn_id", connID))
}

func (h *WSHandler) dispatch(ctx context.Context, connID string, msg inboundMessage) {
	var err error
	switch msg.Type {
	case msgRoomCreate:
		var p createPayload
		if err = decode(msg.Payload, &p); err == nil {
			_, err = h.service.CreateRoom(ctx, connID, domain.RoomConfig{Mode: withDefaults(p.ModeSignature), Solo: p.Solo})
		}
	case msgRoomJoin:
		var p codePayload
		if err = decode(msg.Payload, &p); err == nil {
			_, err = h.service.JoinRoom(ctx, connID, p.Code)
		}
	case msgRoomConfig:
		var p configPayload
		if err = decode(msg.Payload, &p); err == nil {
			_, err = h.service.UpdateRoomConfig(ctx, connID, p.Code, withDefaults(p.ModeSignature))
		}
	case msgQueueJoin:
		var p domain.ModeSignature
		if err = decode(msg.Payload, &p); err == nil {
			err = h.service.JoinQueue(ctx, connID, withDefaults(p))
		}
	case msgQueueLeave:
		h.service.LeaveQueue(connID)
	case msgPlayerReady:
		var p readyPayload
		if err = decode(msg.Payload, &p); err == nil {
			err = h.service.SetReady(connID, p.Code, p.Ready)
		}
	case msgGameSubmit:
		var p submitPayload
		if err = decode(msg.Payload, &p); err == nil {
			_, err = h.service.SubmitAnswer(connID, p.Code, p.QuestionIndex, p.Answer)
		}
	case msgGameTimeout:
		var p codePayload
		if err = decode(msg.Payload, &p); err == nil {
			err = h.service.Timeout(connID, p.Code)
		}
	default:
		err = errUnsupported
	}

	if err == nil || domain.IsDesync(err) {
		return
	}
	h.log.Debug("client action rejected", zap.String("conn_id", connID), zap.String("type", msg.Type), zap.Error(err))
	h.hub.Send(connID, domain.Event{Type: domain.EventError, Payload: domain.ErrorPayload{Message: toastMessage(err)}})
}

var (
	errUnsupported = errors.New("unsupported message type")
	errBadPayload  = errors.New("invalid payload")
)

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errBadPayload
	}
	return nil
}

// withDefaults fills the fields a client may omit when creating a room.
func withDefaults(m domain.ModeSignature) domain.ModeSignature {
	if m.Subject == "" {
		m.Subject = domain.SubjectMath
	}
	if m.Grade == 0 {
		m.Grade = 1
	}
	if m.TotalQuestions == 0 {
		m.TotalQuestions = 10
	}
	return m
}

func toastMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return "방 코드를 찾을 수 없어요."
	case errors.Is(err, domain.ErrRoomFull):
		return "방이 꽉 찼어요."
	case errors.Is(err, domain.ErrEmptyPool):
		return "문제를 불러올 수 없어요."
	case errors.Is(err, domain.ErrMatchInProgress):
		return "게임 중에는 설정을 바꿀 수 없어요."
	default:
		return err.Error()
	}
}

type identity struct {
	name    string
	account *domain.Account
}

func (i identity) withID(connID string) domain.Connection {
	return domain.Connection{ID: connID, Name: i.name, Account: i.account}
}

// identify resolves the caller from a "token" query parameter or an
// Authorization header. Unverifiable tokens connect anonymously.
func (h *WSHandler) identify(r *http.Request) identity {
	var account *domain.Account
	if h.verifier != nil {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = r.Header.Get("Authorization")
		}
		account = h.verifier.Verify(token)
	}

	name := r.URL.Query().Get("name")
	if name == "" && account != nil {
		name = account.Nickname
		if name == "" {
			name = account.Username
		}
	}
	if name == "" {
		name = app.AnonymousName()
	}
	return identity{name: name, account: account}
}
