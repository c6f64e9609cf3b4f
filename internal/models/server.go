package models

import (
	"fmt"
	"time"
)

// Server types as stored in the server_type column
const (
	ServerTypeVPS       = "vps"
	ServerTypeDedicated = "dedicated"
	ServerTypeReseller  = "reseller"
)

// Well-known per-server setting names written by the detail fetchers
const (
	SettingDiskUsed        = "disk_used"
	SettingDiskAvailable   = "disk_available"
	SettingDiskTotal       = "disk_total"
	SettingDiskPercentage  = "disk_percentage"
	SettingBackupEnabled   = "backup_enabled"
	SettingBackupDays      = "backup_days"
	SettingBackupRetention = "backup_retention"
	SettingPHPVersion      = "php_version"
)

// Server represents a tracked WHM/cPanel server
type Server struct {
	ID                  uint       `gorm:"primarykey" json:"id"`
	Name                string     `gorm:"not null;index" json:"name"`
	Address             string     `gorm:"not null" json:"address"`
	Port                int        `gorm:"default:2087" json:"port"`
	ServerType          string     `gorm:"not null;default:vps" json:"server_type"`
	Token               *string    `json:"-"` // API token, never serialized
	Notes               string     `json:"notes"`
	DetailsLastUpdated  *time.Time `json:"details_last_updated"`
	AccountsLastUpdated *time.Time `json:"accounts_last_updated"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	Settings []ServerSetting `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Accounts []Account       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// ServerSetting is one named value owned by a server. Names are unique per
// server, enforced by the composite index.
type ServerSetting struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	ServerID uint   `gorm:"not null;uniqueIndex:idx_server_setting" json:"server_id"`
	Name     string `gorm:"not null;uniqueIndex:idx_server_setting" json:"name"`
	Value    string `json:"value"`
}

// Setting returns the named setting from the loaded settings slice, or ""
// when the server has no such setting. Callers must have preloaded Settings.
func (s *Server) Setting(name string) string {
	for _, setting := range s.Settings {
		if setting.Name == name {
			return setting.Value
		}
	}
	return ""
}

// FormattedServerType returns the display label for the server type
func (s *Server) FormattedServerType() string {
	switch s.ServerType {
	case ServerTypeVPS:
		return "VPS"
	case ServerTypeDedicated:
		return "Dedicated"
	}
	return "Reseller"
}

// FormattedBackupDays renders the stored backup day list for display
func (s *Server) FormattedBackupDays() string {
	return FormatBackupDays(s.Setting(SettingBackupDays))
}

// FormattedDiskUsed renders the stored disk usage for display
func (s *Server) FormattedDiskUsed() string {
	return formatDiskSetting(s.Setting(SettingDiskUsed))
}

// FormattedDiskAvailable renders the stored available disk space for display
func (s *Server) FormattedDiskAvailable() string {
	return formatDiskSetting(s.Setting(SettingDiskAvailable))
}

// FormattedDiskTotal renders the stored total disk space for display
func (s *Server) FormattedDiskTotal() string {
	return formatDiskSetting(s.Setting(SettingDiskTotal))
}

// FormattedPHPVersion renders the stored EasyApache PHP package for display
func (s *Server) FormattedPHPVersion() string {
	return FormatPHPVersion(s.Setting(SettingPHPVersion))
}

// MissingToken reports whether the server needs a token but has none.
// Reseller servers are accessed through their parent and never need one.
func (s *Server) MissingToken() bool {
	return s.ServerType != ServerTypeReseller && s.Token == nil
}

// CanRefreshData reports whether the server is eligible for a data refresh
func (s *Server) CanRefreshData() bool {
	return s.ServerType != ServerTypeReseller && !s.MissingToken()
}

// WhmURL returns the WHM login URL. Port 2087 is WHM's TLS port; anything
// else is assumed to be a plain-HTTP panel.
func (s *Server) WhmURL() string {
	if s.Port == 2087 {
		return fmt.Sprintf("https://%s:%d", s.Address, s.Port)
	}
	return fmt.Sprintf("http://%s:%d", s.Address, s.Port)
}

// DiskSeverity classifies the server's stored disk percentage against the
// configured thresholds
func (s *Server) DiskSeverity(t DiskThresholds) string {
	return severityForPercent(parseSettingInt(s.Setting(SettingDiskPercentage)), t)
}
