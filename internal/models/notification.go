package models

import "time"

// Notification is an inbox message for a user, created when one of their issues changes status.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipientId"`
	Message     string    `json:"message"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}
