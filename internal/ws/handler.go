package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/julo/lendcore/internal/domain/account"
	"golang.org/x/net/websocket"
)

type AccountResolver interface {
	GetByCustomer(ctx context.Context, customerID string) (*account.Account, error)
}

type Handler struct {
	hub      *Hub
	accounts AccountResolver
}

func NewHandler(hub *Hub, accounts AccountResolver) *Handler {
	return &Handler{hub: hub, accounts: accounts}
}

type subscribeMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// HandleWebSocket expects the auth middleware to have set user_id. The
// account is resolved before the upgrade so unknown customers get a plain
// HTTP error.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	customerID := c.GetString("user_id")
	if customerID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "errors": []string{"unauthorized"}})
		return
	}
	acc, err := h.accounts.GetByCustomer(c.Request.Context(), customerID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "errors": []string{account.ErrAccountNotFound.Error()}})
		return
	}

	websocket.Handler(func(conn *websocket.Conn) {
		client := NewClient(conn, acc.ID)
		go h.writer(client)
		h.reader(client)
	}).ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) reader(client *Client) {
	defer func() {
		h.hub.UnsubscribeAll(client)
		client.close()
	}()

	for {
		var raw string
		if err := websocket.Message.Receive(client.conn, &raw); err != nil {
			return
		}
		var msg subscribeMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		if strings.ToLower(strings.TrimSpace(msg.Action)) != "subscribe" {
			continue
		}
		topic := subscriptionTopic(msg, client.accountID)
		if topic == "" {
			client.send(eventPayload("subscribe_rejected", map[string]any{"channel": msg.Channel}))
			continue
		}
		h.hub.Subscribe(topic, client)
		client.send(eventPayload("subscribed", map[string]any{"channel": msg.Channel}))
	}
}

func (h *Handler) writer(client *Client) {
	for payload := range client.out {
		if err := websocket.Message.Send(client.conn, string(payload)); err != nil {
			return
		}
	}
}

// subscriptionTopic scopes every channel to the caller's own account.
func subscriptionTopic(msg subscribeMessage, accountID string) string {
	if accountID == "" {
		return ""
	}
	switch strings.ToLower(strings.TrimSpace(msg.Channel)) {
	case "account:loans":
		return AccountLoansChannel(accountID)
	default:
		return ""
	}
}

func eventPayload(event string, data map[string]any) []byte {
	payload, _ := json.Marshal(map[string]any{"event": event, "data": data})
	return payload
}
