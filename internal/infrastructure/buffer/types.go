package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EntityAudit = "audit"

	OperationAppend = "append"
)

// Item is an operation waiting for the audit database to come back.
type Item struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Entity == "" {
		i.Entity = EntityAudit
	}
	if i.Operation == "" {
		i.Operation = OperationAppend
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
