package bridge

import (
	"encoding/json"

	"shaderland/backend/shared"
)

// Message is the cross-boundary envelope posted into a renderer.
type Message struct {
	Type   string                 `json:"type"`
	Params map[string]interface{} `json:"params"`
}

// UpdateParams builds the full-state push for params.
func UpdateParams(params map[string]interface{}) Message {
	return Message{Type: shared.UpdateParamsMessageType, Params: params}
}

// JSON encodes the message for postMessage.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}
