package models

import (
	"gorm.io/gorm"
)

// ManagerSetting is a key/value record; the evaluation configuration lives
// under the "manager.config" key as a JSON document.
type ManagerSetting struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;not null" json:"key"`
	Value string `gorm:"not null" json:"value"`
}

const ManagerConfigKey = "manager.config"
