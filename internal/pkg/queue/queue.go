package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Event é um payload de webhook da Meta aguardando reconciliação.
// O corpo fica cru: o reconciliador é quem interpreta entries/changes.
type Event struct {
	ID         string          `json:"id"`
	Object     string          `json:"object"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

type Queue interface {
	Enqueue(ctx context.Context, event Event) error
	Dequeue(ctx context.Context, timeout time.Duration) (*Event, error)
	Size(ctx context.Context) (int64, error)
	Close() error
}
