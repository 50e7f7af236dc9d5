// Package audit is a write-only sink for privileged mutations. Recording is
// best-effort: a failed write is logged locally and never becomes the
// primary operation's error.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"readaloud/internal/model"
)

type Sink interface {
	InsertAuditEvent(ctx context.Context, event model.AuditEvent) error
}

type Entry struct {
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	Details      string
	IPAddress    string
}

func Record(ctx context.Context, sink Sink, entry Entry) {
	if sink == nil {
		return
	}
	event := model.AuditEvent{
		ID:           uuid.NewString(),
		ActorID:      entry.ActorID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		CreatedAt:    time.Now().UTC(),
	}
	if entry.ResourceID != "" {
		event.ResourceID = &entry.ResourceID
	}
	if entry.Details != "" {
		event.Details = &entry.Details
	}
	if entry.IPAddress != "" {
		event.IPAddress = &entry.IPAddress
	}
	if err := sink.InsertAuditEvent(ctx, event); err != nil {
		log.Printf("audit write failed for %s %s: %v", entry.Action, entry.ResourceType, err)
	}
}
