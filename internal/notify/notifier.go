package notify

import (
	"context"

	"slothold/internal/domain"
)

// Notifier is fire-and-forget: callers log failures and move on; a broken
// notification channel must never fail a reservation flow.
type Notifier interface {
	Notify(ctx context.Context, userID int64, typ, title, message, actionURL, priority string) error
}

type Store interface {
	Create(ctx context.Context, n *domain.Notification) error
}

// InboxNotifier persists in-app notification rows.
type InboxNotifier struct {
	store Store
}

func NewInboxNotifier(store Store) *InboxNotifier {
	return &InboxNotifier{store: store}
}

func (n *InboxNotifier) Notify(ctx context.Context, userID int64, typ, title, message, actionURL, priority string) error {
	return n.store.Create(ctx, &domain.Notification{
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		ActionURL: actionURL,
		Priority:  priority,
	})
}
