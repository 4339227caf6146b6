package amqp

import (
	"encoding/json"
	"fmt"

	"carteira/internal/core"
)

// EncodeEvent converts an event to its JSON message body.
func EncodeEvent(ev core.LedgerEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeEvent parses a message body. Events without a kind or owner are
// rejected.
func DecodeEvent(data []byte) (core.LedgerEvent, error) {
	var ev core.LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return core.LedgerEvent{}, err
	}
	if ev.Kind == "" || ev.OwnerID == "" {
		return core.LedgerEvent{}, fmt.Errorf("incomplete ledger event: kind=%q owner=%q", ev.Kind, ev.OwnerID)
	}
	return ev, nil
}
