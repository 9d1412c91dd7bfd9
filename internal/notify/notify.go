// Package notify records inbox notifications for users.
package notify

import (
	"context"
	"fmt"

	"github.com/joescharf/civic/internal/models"
)

// Sink records a notification for a recipient. Delivery is out of scope.
type Sink interface {
	Record(ctx context.Context, recipientID, message string) error
}

// NotificationWriter persists notifications.
type NotificationWriter interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// StoreSink is a Sink backed by the store.
type StoreSink struct {
	w NotificationWriter
}

// NewStoreSink creates a StoreSink. Pass a transaction-bound store to make
// the notification part of the surrounding transaction.
func NewStoreSink(w NotificationWriter) *StoreSink {
	return &StoreSink{w: w}
}

func (s *StoreSink) Record(ctx context.Context, recipientID, message string) error {
	if err := s.w.CreateNotification(ctx, &models.Notification{RecipientID: recipientID, Message: message}); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

// StatusChanged is the message sent to an issue's creator after a status update.
func StatusChanged(title string, status models.IssueStatus) string {
	return fmt.Sprintf("Your issue '%s' status has been updated to %s.", title, status)
}
