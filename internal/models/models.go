package models

import (
	"time"
)

// Notification represents a delivered (or attempted) alert
type Notification struct {
	ID       uint      `gorm:"primarykey" json:"id"`
	ServerID uint      `json:"server_id"`                     // Associated server
	Type     string    `json:"type"`                          // Notifier type (email/webhook/telegram)
	Content  string    `json:"content"`                       // Notification content
	Status   string    `json:"status"`                        // Send status (success/failed)
	SentAt   time.Time `json:"sent_at"`
}

// User represents a dashboard user account
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"not null" json:"-"` // Hashed password (excluded from JSON)
	Email     string    `json:"email"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
