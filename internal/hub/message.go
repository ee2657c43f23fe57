package hub

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/prudhvinik1/webradegast/internal/models"
)

const (
	TypeWatch         = "watch"
	TypeUnwatch       = "unwatch"
	TypeBrowserClose  = "browser-close"
	TypeBrowserReturn = "browser-return"
	TypePing          = "ping"

	TypePong           = "pong"
	TypePresenceStatus = "presence.status"
	TypeError          = "error"
)

// InboundMessage is what the browser sends over the socket.
type InboundMessage struct {
	Type      string    `json:"type"`
	AccountID uuid.UUID `json:"accountId,omitempty"`
}

// OutboundMessage wraps every frame the hub sends.
type OutboundMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type StatusPayload struct {
	AccountID  uuid.UUID             `json:"accountId"`
	Status     models.PresenceStatus `json:"status"`
	StatusText string                `json:"statusText"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func encode(msgType string, data interface{}) ([]byte, error) {
	return json.Marshal(OutboundMessage{Type: msgType, Data: data})
}
