package services

import (
	"errors"

	"gorm.io/gorm"

	"server-tracker/internal/models"
)

// SettingsService stores per-server named values. Every operation is scoped
// to a single server; names are unique per server.
type SettingsService struct {
	db *gorm.DB
}

// NewSettingsService creates a new settings service
func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// Get returns the named setting for a server. The second return value is
// false when the setting does not exist.
func (s *SettingsService) Get(serverID uint, name string) (string, bool) {
	var setting models.ServerSetting
	err := s.db.Where("server_id = ? AND name = ?", serverID, name).First(&setting).Error
	if err != nil {
		return "", false
	}
	return setting.Value, true
}

// All returns every setting the server owns as a name/value map
func (s *SettingsService) All(serverID uint) (map[string]string, error) {
	var settings []models.ServerSetting
	if err := s.db.Where("server_id = ?", serverID).Find(&settings).Error; err != nil {
		return nil, err
	}

	values := make(map[string]string, len(settings))
	for _, setting := range settings {
		values[setting.Name] = setting.Value
	}
	return values, nil
}

// Set creates the setting if absent, otherwise overwrites its value
func (s *SettingsService) Set(serverID uint, name, value string) error {
	return applySetting(s.db, serverID, name, value)
}

// Remove deletes one setting. Removing a setting that does not exist is not
// an error.
func (s *SettingsService) Remove(serverID uint, name string) error {
	return s.db.Where("server_id = ? AND name = ?", serverID, name).
		Delete(&models.ServerSetting{}).Error
}

// RemoveAll deletes every setting owned by the server
func (s *SettingsService) RemoveAll(serverID uint) error {
	return s.db.Where("server_id = ?", serverID).
		Delete(&models.ServerSetting{}).Error
}

// applySetting is the update-or-create primitive shared with the tracker,
// which needs to write settings inside its own transaction
func applySetting(db *gorm.DB, serverID uint, name, value string) error {
	var setting models.ServerSetting
	err := db.Where("server_id = ? AND name = ?", serverID, name).First(&setting).Error
	switch {
	case err == nil:
		return db.Model(&setting).Update("value", value).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return db.Create(&models.ServerSetting{
			ServerID: serverID,
			Name:     name,
			Value:    value,
		}).Error
	}
	return err
}
