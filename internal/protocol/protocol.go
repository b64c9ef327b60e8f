// Package protocol defines the observer wire protocol: JSON messages a
// read-only client receives over the websocket stream, and the error
// code registry shared with HTTP endpoints.
package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeWelcome   = "WELCOME"
	TypeTick      = "TICK"
	TypeTrade     = "TRADE"
	TypeMarket    = "MARKET"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
