package ws

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"mealswipe/internal/model"
	"mealswipe/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; CORS is enforced on the REST surface
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub        *Hub
	authSvc    *service.AuthService
	sessionSvc *service.SessionService
	swipeSvc   *service.SwipeService
	cookieName string
}

// NewHandler creates a new WebSocket handler
func NewHandler(
	hub *Hub,
	authSvc *service.AuthService,
	sessionSvc *service.SessionService,
	swipeSvc *service.SwipeService,
	cookieName string,
) *Handler {
	return &Handler{
		hub:        hub,
		authSvc:    authSvc,
		sessionSvc: sessionSvc,
		swipeSvc:   swipeSvc,
		cookieName: cookieName,
	}
}

// SessionWS handles GET /v1/ws/sessions/{sessionID}
func (h *Handler) SessionWS(w http.ResponseWriter, r *http.Request) {
	token := h.tokenFrom(r)
	if token == "" {
		http.Error(w, "missing credentials", http.StatusForbidden)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	principal, session, err := h.handshake(r.Context(), token, mux.Vars(r)["sessionID"])
	if err != nil {
		h.deny(wsConn, err)
		return
	}

	conn := NewConnection(session.ID, principal)
	h.hub.Connect(conn)
	h.hub.Unicast(conn, model.ActionConnectionCode, CodeSuccessfulConnection.payload(""))
	h.hub.SessionBroadcast(session.ID, model.ActionSessionMessage, model.MessagePayload{
		Message: fmt.Sprintf("%s joined the session", principal.Username),
	})

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

// tokenFrom reads the access token from the cookie, falling back to the
// token query parameter
func (h *Handler) tokenFrom(r *http.Request) string {
	if c, err := r.Cookie(h.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

func (h *Handler) handshake(ctx context.Context, token, sessionID string) (model.Principal, *model.Session, error) {
	principal, err := h.authSvc.Authenticate(ctx, token)
	if err != nil {
		return model.Principal{}, nil, err
	}
	session, err := h.sessionSvc.Join(ctx, principal, sessionID)
	if err != nil {
		return model.Principal{}, nil, err
	}
	return principal, session, nil
}

// deny reports a failed handshake on the freshly upgraded socket and closes
// it with a policy-violation frame
func (h *Handler) deny(wsConn *websocket.Conn, err error) {
	defer wsConn.Close()

	code, detail := codeFor(err)
	closeCode := websocket.ClosePolicyViolation
	if code == CodeInternalError {
		log.Printf("WebSocket handshake failed: %v", err)
		closeCode = websocket.CloseInternalServerErr
	}

	wsConn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := wsConn.WriteJSON(&model.Packet{
		Action:  model.ActionConnectionCode,
		Payload: code.payload(detail),
	}); err != nil {
		return
	}
	wsConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, code.Name))
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		if !h.hub.Disconnect(conn) {
			h.hub.SessionBroadcast(conn.SessionID, model.ActionSessionMessage, model.MessagePayload{
				Message: fmt.Sprintf("%s left the session", conn.Principal.Username),
			})
		}
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		h.handleFrame(ctx, conn, data)
	}
}

// handleFrame runs one packet to completion. Every failure becomes exactly
// one CONNECTION_CODE reply and the connection stays open.
func (h *Handler) handleFrame(ctx context.Context, conn *Connection, data []byte) {
	err := h.dispatchSafely(ctx, conn, data)
	if err == nil {
		return
	}

	code, detail := codeFor(err)
	if code == CodeInternalError {
		log.Printf("Packet from user %d in session %s failed: %v", conn.Principal.UserID, conn.SessionID, err)
	}
	h.hub.Unicast(conn, model.ActionConnectionCode, code.payload(detail))
}

func (h *Handler) dispatchSafely(ctx context.Context, conn *Connection, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()

	env, err := decodeEnvelope(data)
	if err != nil {
		return err
	}
	return h.dispatch(ctx, conn, env)
}

func (h *Handler) dispatch(ctx context.Context, conn *Connection, env *envelope) error {
	switch env.Action {
	case model.ActionGlobalMessage:
		return h.globalMessage(conn, env.Payload)
	case model.ActionSessionMessage:
		return h.sessionMessage(conn, env.Payload)
	case model.ActionRecipeSwipe:
		return h.recipeSwipe(ctx, conn, env.Payload)
	case model.ActionSessionStatusUpdate:
		return h.statusUpdate(ctx, conn, env.Payload)
	case model.ActionConnectionCode, model.ActionRecipeMatch:
		return errActionNotImplemented
	default:
		return errActionNotFound
	}
}

func (h *Handler) globalMessage(conn *Connection, payload []byte) error {
	if !conn.Principal.IsAdmin {
		return service.ErrUnauthorized
	}
	msg, err := messageFrom(payload)
	if err != nil {
		return err
	}
	sender := conn.Principal.UserID
	h.hub.GlobalBroadcast(model.ActionGlobalMessage, model.MessagePayload{Message: msg, SenderID: &sender})
	return nil
}

func (h *Handler) sessionMessage(conn *Connection, payload []byte) error {
	msg, err := messageFrom(payload)
	if err != nil {
		return err
	}
	sender := conn.Principal.UserID
	h.hub.SessionBroadcast(conn.SessionID, model.ActionSessionMessage, model.MessagePayload{Message: msg, SenderID: &sender})
	return nil
}

func (h *Handler) recipeSwipe(ctx context.Context, conn *Connection, payload []byte) error {
	var in model.SwipePayload
	if err := decodePayload(payload, &in); err != nil {
		return err
	}
	if _, err := h.swipeSvc.Swipe(ctx, conn.Principal, conn.SessionID, in); err != nil {
		return err
	}
	h.hub.Unicast(conn, model.ActionConnectionCode, CodeSuccessfulSwipe.payload(""))
	return nil
}

func (h *Handler) statusUpdate(ctx context.Context, conn *Connection, payload []byte) error {
	var in model.StatusUpdatePayload
	if err := decodePayload(payload, &in); err != nil {
		return err
	}
	_, err := h.sessionSvc.UpdateStatus(ctx, conn.Principal, conn.SessionID, in.Status)
	return err
}

func messageFrom(payload []byte) (string, error) {
	var in model.MessagePayload
	if err := decodePayload(payload, &in); err != nil {
		return "", err
	}
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return "", errNoMessage
	}
	return msg, nil
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
