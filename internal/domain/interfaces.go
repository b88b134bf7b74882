package domain

import "context"

// BookFeed defines the interface for the order-book streaming connector
type BookFeed interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// PresetRepository defines how parameter presets are persisted
type PresetRepository interface {
	SavePreset(preset *ParameterPreset) error
	GetPreset(name string) (*ParameterPreset, error)
	ListPresets() ([]ParameterPreset, error)
	DeletePreset(name string) error
}
