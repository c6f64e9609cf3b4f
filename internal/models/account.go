package models

import (
	"time"
)

// Account represents a hosting account owned by one server. The (server,
// user) pair is the reconciliation key and is unique.
type Account struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	ServerID      uint       `gorm:"not null;uniqueIndex:idx_server_user" json:"server_id"`
	User          string     `gorm:"not null;uniqueIndex:idx_server_user" json:"user"`
	Domain        string     `json:"domain"`
	IP            string     `json:"ip"`
	Backup        bool       `json:"backup"`
	Suspended     bool       `json:"suspended"`
	SuspendReason string     `json:"suspend_reason"`
	SuspendTime   *time.Time `json:"suspend_time"`
	SetupDate     time.Time  `json:"setup_date"`
	DiskUsed      int64      `json:"disk_used"`
	DiskLimit     int64      `json:"disk_limit"`
	Plan          string     `json:"plan"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// FormattedDiskUsed renders the account's disk usage for display
func (a *Account) FormattedDiskUsed() string {
	return FormatFileSize(a.DiskUsed)
}

// FormattedDiskLimit renders the account's disk quota for display.
// A zero limit means the account is unlimited.
func (a *Account) FormattedDiskLimit() string {
	if a.DiskLimit == 0 {
		return "Unlimited"
	}
	return FormatFileSize(a.DiskLimit)
}

// DiskPercentage returns the account's disk usage as a whole percentage of
// its quota, or 0 for unlimited accounts
func (a *Account) DiskPercentage() int {
	if a.DiskLimit <= 0 {
		return 0
	}
	return int(float64(a.DiskUsed) / float64(a.DiskLimit) * 100)
}

// DiskSeverity classifies the account's disk usage against the configured
// thresholds
func (a *Account) DiskSeverity(t DiskThresholds) string {
	return severityForPercent(a.DiskPercentage(), t)
}
