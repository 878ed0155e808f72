package store

import "github.com/google/uuid"

// IDGenerator hands out run IDs to BeginRun.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator issues UUIDv7 run IDs. The leading timestamp bits make
// IDs minted later sort later, which breaks ties between runs that share a
// started_at second.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
