package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"tradesim/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists parameter presets and key/value settings. Snapshots and
// results are deliberately NOT persisted; only user configuration survives
// a restart.
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite storage instance
func NewStorage() (*Storage, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB path: %w", err)
	}

	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.ParameterPreset{}, &domain.AppSetting{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "TradeSim", "data", "tradesim.db"), nil
}

// ======================================================================================
// Preset Operations
// ======================================================================================

// SavePreset creates or updates a named parameter preset
func (s *Storage) SavePreset(preset *domain.ParameterPreset) error {
	return s.db.Save(preset).Error
}

// GetPreset retrieves a preset by name
func (s *Storage) GetPreset(name string) (*domain.ParameterPreset, error) {
	var preset domain.ParameterPreset
	err := s.db.First(&preset, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &preset, err
}

// ListPresets retrieves all presets
func (s *Storage) ListPresets() ([]domain.ParameterPreset, error) {
	var presets []domain.ParameterPreset
	err := s.db.Order("name").Find(&presets).Error
	return presets, err
}

// DeletePreset removes a preset by name
func (s *Storage) DeletePreset(name string) error {
	return s.db.Where("name = ?", name).Delete(&domain.ParameterPreset{}).Error
}

// ======================================================================================
// Settings Operations
// ======================================================================================

// lastUsedKey stores the most recently applied parameters so a restart
// resumes where the user left off.
const lastUsedKey = "last_used_params"

// SaveSetting saves a user setting
func (s *Storage) SaveSetting(key, value string) error {
	setting := domain.AppSetting{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&setting).Error
}

// LoadSettings loads all user settings as a map
func (s *Storage) LoadSettings() (map[string]string, error) {
	var settings []domain.AppSetting
	if err := s.db.Find(&settings).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, st := range settings {
		result[st.Key] = st.Value
	}
	return result, nil
}

// SaveLastUsed persists the given parameters as the restart defaults.
func (s *Storage) SaveLastUsed(params domain.SimulationParameters) error {
	return s.SavePreset(domain.NewParameterPreset(lastUsedKey, params))
}

// LoadLastUsed returns the persisted restart defaults, or ok=false if none
// have been saved yet.
func (s *Storage) LoadLastUsed() (domain.SimulationParameters, bool, error) {
	preset, err := s.GetPreset(lastUsedKey)
	if err != nil || preset == nil {
		return domain.SimulationParameters{}, false, err
	}
	params, err := preset.Parameters()
	if err != nil {
		return domain.SimulationParameters{}, false, err
	}
	return params, true, nil
}
