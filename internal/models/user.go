package models

import "time"

// Request statuses
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// User represents a VPN user tracked by the bot
type User struct {
	ID         int64
	TgID       int64
	Username   string
	FullName   string
	UUID       string
	Email      string
	InboundID  int
	IsActive   bool
	IsApproved bool
	Up         int64
	Down       int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AccessRequest represents a pending/processed access request
type AccessRequest struct {
	ID          int64
	UserID      int64
	Status      string
	AdminID     int64
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
