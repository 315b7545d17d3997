// Package txn defines the immutable facts recorded in a saga log.
package txn

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Transaction is one immutable fact in a saga instance's log. Seq,
// InstanceID and Timestamp are stamped by the store on append.
type Transaction struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	AvatarID   string    `json:"avatar_id"`
	InstanceID string    `json:"instance_id"`
	Seq        uint64    `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    Payload   `json:"payload"`
}

// New builds an unsequenced transaction with a fresh id.
func New(kind Kind, avatarID string, payload Payload) Transaction {
	if payload == nil {
		payload = Payload{}
	}
	return Transaction{
		ID:       uuid.NewString(),
		Kind:     kind,
		AvatarID: avatarID,
		Payload:  payload,
	}
}

// Clone returns a copy that shares no mutable state with t.
func (t Transaction) Clone() Transaction {
	out := t
	out.Payload = t.Payload.Clone()
	return out
}

// Validate checks the fields every stored transaction must carry.
func (t Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction id is required")
	}
	if !t.Kind.Known() {
		return fmt.Errorf("unknown transaction kind %q", t.Kind)
	}
	if t.AvatarID == "" {
		return fmt.Errorf("transaction %s: avatar id is required", t.ID)
	}
	return nil
}

// EncodePayload returns the canonical JSON form of the payload. Map keys
// are emitted in sorted order so equal payloads encode to equal bytes.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		p = Payload{}
	}
	data, err := json.Marshal(map[string]string(p))
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return data, nil
}

// DecodePayload parses a payload produced by EncodePayload.
func DecodePayload(data []byte) (Payload, error) {
	p := Payload{}
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return p, nil
}
