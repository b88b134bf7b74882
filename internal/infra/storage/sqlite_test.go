package storage

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tradesim/internal/domain"
)

func setupTestDB(t *testing.T) *Storage {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if err := db.AutoMigrate(&domain.ParameterPreset{}, &domain.AppSetting{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	return &Storage{db: db}
}

func sampleParams() domain.SimulationParameters {
	return domain.SimulationParameters{
		Exchange:   "OKX",
		Asset:      "BTC-USDT-SWAP",
		OrderType:  domain.OrderTypeMarket,
		Quantity:   decimal.NewFromInt(100),
		Volatility: decimal.NewFromFloat(2.5),
		FeeTier:    domain.FeeTierVIP1,
	}
}

func TestSaveAndGetPreset(t *testing.T) {
	s := setupTestDB(t)

	preset := domain.NewParameterPreset("swing", sampleParams())
	if err := s.SavePreset(preset); err != nil {
		t.Fatalf("SavePreset failed: %v", err)
	}

	fetched, err := s.GetPreset("swing")
	if err != nil {
		t.Fatalf("GetPreset failed: %v", err)
	}
	if fetched == nil {
		t.Fatal("fetched preset is nil")
	}

	params, err := fetched.Parameters()
	if err != nil {
		t.Fatalf("Parameters failed: %v", err)
	}
	if !params.Quantity.Equal(decimal.NewFromInt(100)) {
		t.Errorf("quantity = %s, want 100", params.Quantity)
	}
	if params.FeeTier != domain.FeeTierVIP1 {
		t.Errorf("fee tier = %v, want VIP1", params.FeeTier)
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	s := setupTestDB(t)

	preset, err := s.GetPreset("nope")
	if err != nil {
		t.Fatalf("GetPreset failed: %v", err)
	}
	if preset != nil {
		t.Error("missing preset should return nil, not an error")
	}
}

func TestListAndDeletePresets(t *testing.T) {
	s := setupTestDB(t)

	for _, name := range []string{"b", "a", "c"} {
		if err := s.SavePreset(domain.NewParameterPreset(name, sampleParams())); err != nil {
			t.Fatalf("SavePreset(%s) failed: %v", name, err)
		}
	}

	presets, err := s.ListPresets()
	if err != nil {
		t.Fatalf("ListPresets failed: %v", err)
	}
	if len(presets) != 3 {
		t.Fatalf("got %d presets, want 3", len(presets))
	}
	if presets[0].Name != "a" {
		t.Errorf("presets not ordered by name: %s first", presets[0].Name)
	}

	if err := s.DeletePreset("b"); err != nil {
		t.Fatalf("DeletePreset failed: %v", err)
	}
	presets, _ = s.ListPresets()
	if len(presets) != 2 {
		t.Errorf("got %d presets after delete, want 2", len(presets))
	}
}

func TestUpdatePresetOverwrites(t *testing.T) {
	s := setupTestDB(t)

	if err := s.SavePreset(domain.NewParameterPreset("swing", sampleParams())); err != nil {
		t.Fatalf("SavePreset failed: %v", err)
	}

	updated := sampleParams()
	updated.Quantity = decimal.NewFromInt(500)
	if err := s.SavePreset(domain.NewParameterPreset("swing", updated)); err != nil {
		t.Fatalf("SavePreset update failed: %v", err)
	}

	fetched, _ := s.GetPreset("swing")
	params, _ := fetched.Parameters()
	if !params.Quantity.Equal(decimal.NewFromInt(500)) {
		t.Errorf("quantity = %s, want the updated 500", params.Quantity)
	}

	presets, _ := s.ListPresets()
	if len(presets) != 1 {
		t.Errorf("got %d presets, update must not duplicate", len(presets))
	}
}

func TestLastUsedRoundtrip(t *testing.T) {
	s := setupTestDB(t)

	if _, ok, err := s.LoadLastUsed(); err != nil || ok {
		t.Fatalf("expected no last-used yet: ok=%v err=%v", ok, err)
	}

	if err := s.SaveLastUsed(sampleParams()); err != nil {
		t.Fatalf("SaveLastUsed failed: %v", err)
	}

	params, ok, err := s.LoadLastUsed()
	if err != nil || !ok {
		t.Fatalf("LoadLastUsed failed: ok=%v err=%v", ok, err)
	}
	if !params.Volatility.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("volatility = %s, want 2.5", params.Volatility)
	}
}

func TestSettings(t *testing.T) {
	s := setupTestDB(t)

	if err := s.SaveSetting("theme", "dark"); err != nil {
		t.Fatalf("SaveSetting failed: %v", err)
	}
	if err := s.SaveSetting("theme", "light"); err != nil {
		t.Fatalf("SaveSetting update failed: %v", err)
	}

	settings, err := s.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if settings["theme"] != "light" {
		t.Errorf("theme = %s, want light", settings["theme"])
	}
}
