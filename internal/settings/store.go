package settings

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/warrantyeye/internal/models"
	"gorm.io/gorm"
)

// ErrConfigurationMissing is returned when no usable evaluation configuration
// exists. An evaluation pass must abort on it rather than invent thresholds.
var ErrConfigurationMissing = errors.New("evaluation configuration missing")

// Windows holds the lookback window, in days, for each detector rule.
type Windows struct {
	FaultRateDays       int `json:"faultRateDays"`
	DuplicateSerialDays int `json:"duplicateSerialDays"`
	DelayedRepairDays   int `json:"delayedRepairDays"`
	OutOfWarrantyDays   int `json:"outOfWarrantyDays"`
	ReturnRateDays      int `json:"returnRateDays"`
}

// Thresholds holds the trigger levels for each detector rule.
type Thresholds struct {
	FaultyRequestsPerProduct     int     `json:"faultyRequestsPerProduct"`
	RepairCenterOverdueCount     int     `json:"repairCenterOverdueCount"`
	RepairCenterResolvedRatioMin float64 `json:"repairCenterResolvedRatioMin"`
	DuplicateSerialCount         int     `json:"duplicateSerialCount"`
	OutOfWarrantySpikeCount      int     `json:"outOfWarrantySpikeCount"`
	ReturnRatePercent            float64 `json:"returnRatePercent"`
}

// Config is the tunable evaluation configuration, stored as a single JSON
// record and read fresh at the start of every pass.
type Config struct {
	Windows    Windows    `json:"windows"`
	Thresholds Thresholds `json:"thresholds"`
}

// Validate rejects configs that would make evaluation meaningless.
func (c Config) Validate() error {
	windows := map[string]int{
		"faultRateDays":       c.Windows.FaultRateDays,
		"duplicateSerialDays": c.Windows.DuplicateSerialDays,
		"delayedRepairDays":   c.Windows.DelayedRepairDays,
		"outOfWarrantyDays":   c.Windows.OutOfWarrantyDays,
		"returnRateDays":      c.Windows.ReturnRateDays,
	}
	for name, days := range windows {
		if days <= 0 {
			return fmt.Errorf("window %s must be positive, got %d", name, days)
		}
	}

	if c.Thresholds.FaultyRequestsPerProduct <= 0 {
		return fmt.Errorf("threshold faultyRequestsPerProduct must be positive")
	}
	if c.Thresholds.RepairCenterOverdueCount <= 0 {
		return fmt.Errorf("threshold repairCenterOverdueCount must be positive")
	}
	if c.Thresholds.DuplicateSerialCount <= 0 {
		return fmt.Errorf("threshold duplicateSerialCount must be positive")
	}
	if c.Thresholds.OutOfWarrantySpikeCount <= 0 {
		return fmt.Errorf("threshold outOfWarrantySpikeCount must be positive")
	}
	if c.Thresholds.RepairCenterResolvedRatioMin < 0 || c.Thresholds.RepairCenterResolvedRatioMin > 1 {
		return fmt.Errorf("threshold repairCenterResolvedRatioMin must be in [0,1]")
	}
	if c.Thresholds.ReturnRatePercent < 0 || c.Thresholds.ReturnRatePercent > 1 {
		return fmt.Errorf("threshold returnRatePercent must be in [0,1]")
	}
	return nil
}

// DefaultConfig returns the configuration seeded on first boot. Admins tune
// it afterwards through the settings API.
func DefaultConfig() Config {
	return Config{
		Windows: Windows{
			FaultRateDays:       30,
			DuplicateSerialDays: 60,
			DelayedRepairDays:   10,
			OutOfWarrantyDays:   30,
			ReturnRateDays:      30,
		},
		Thresholds: Thresholds{
			FaultyRequestsPerProduct:     10,
			RepairCenterOverdueCount:     5,
			RepairCenterResolvedRatioMin: 0.6,
			DuplicateSerialCount:         3,
			OutOfWarrantySpikeCount:      20,
			ReturnRatePercent:            0.3,
		},
	}
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Load fetches and validates the evaluation configuration. Returns
// ErrConfigurationMissing when the record is absent or unusable.
func (s *Store) Load() (Config, error) {
	var setting models.ManagerSetting
	if err := s.db.Where("key = ?", models.ManagerConfigKey).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Config{}, ErrConfigurationMissing
		}
		return Config{}, fmt.Errorf("failed to load settings: %v", err)
	}

	var cfg Config
	if err := json.Unmarshal([]byte(setting.Value), &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: malformed config record: %v", ErrConfigurationMissing, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfigurationMissing, err)
	}

	return cfg, nil
}

// Update replaces the evaluation configuration.
func (s *Store) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	value, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %v", err)
	}

	var setting models.ManagerSetting
	err = s.db.Where("key = ?", models.ManagerConfigKey).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = models.ManagerSetting{Key: models.ManagerConfigKey, Value: string(value)}
		return s.db.Create(&setting).Error
	}
	if err != nil {
		return fmt.Errorf("failed to load settings: %v", err)
	}

	setting.Value = string(value)
	return s.db.Save(&setting).Error
}

// SeedDefault inserts the default configuration if no record exists yet.
func (s *Store) SeedDefault() error {
	var count int64
	if err := s.db.Model(&models.ManagerSetting{}).
		Where("key = ?", models.ManagerConfigKey).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count settings: %v", err)
	}
	if count > 0 {
		return nil
	}
	return s.Update(DefaultConfig())
}
