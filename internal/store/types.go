package store

import "time"

// Instance is one avatar's run through one saga.
type Instance struct {
	InstanceID string    `json:"instance_id"`
	SagaRef    string    `json:"saga_ref"`
	AvatarID   string    `json:"avatar_id"`
	CreatedAt  time.Time `json:"created_at"`
}
