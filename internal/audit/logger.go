package audit

import (
	"context"
	"encoding/json"
	"log"

	"slothold/internal/domain"
	"slothold/internal/pkg/clock"
)

type Repo interface {
	Append(ctx context.Context, e *domain.AuditLogEntry) error
}

// Publisher mirrors audit entries onto the event stream. Optional.
type Publisher interface {
	PublishAuditEvent(ctx context.Context, e domain.AuditLogEntry)
}

type Entry struct {
	ReservationID string
	Action        string
	BeforeStatus  string
	AfterStatus   string
	Actor         string
	Detail        map[string]any
}

// Logger appends transition entries. Audit failures are logged and swallowed
// so a broken audit store cannot fail the transition it describes.
type Logger struct {
	repo Repo
	pub  Publisher
	clk  clock.Clock
}

func NewLogger(repo Repo, pub Publisher, clk clock.Clock) *Logger {
	return &Logger{repo: repo, pub: pub, clk: clk}
}

func (l *Logger) Log(ctx context.Context, e Entry) {
	detail := ""
	if len(e.Detail) > 0 {
		if b, err := json.Marshal(e.Detail); err == nil {
			detail = string(b)
		}
	}
	rec := &domain.AuditLogEntry{
		ReservationID: e.ReservationID,
		Action:        e.Action,
		BeforeStatus:  e.BeforeStatus,
		AfterStatus:   e.AfterStatus,
		Actor:         e.Actor,
		Detail:        detail,
		CreatedAt:     l.clk.Now(),
	}
	if err := l.repo.Append(ctx, rec); err != nil {
		log.Printf("audit_append_failed action=%s reservation_id=%s err=%v", e.Action, e.ReservationID, err)
	}
	if l.pub != nil {
		l.pub.PublishAuditEvent(ctx, *rec)
	}
}
