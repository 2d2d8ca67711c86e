package dto

import "encoding/json"

type WebhookRequest struct {
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// HasPayload is false for an absent or JSON null payload.
func (r WebhookRequest) HasPayload() bool {
	return len(r.Payload) > 0 && string(r.Payload) != "null"
}
