package models

import (
	"time"

	"gorm.io/gorm"
)

type AlertType string

const (
	AlertTypeHighFaultRate          AlertType = "HIGH_FAULT_RATE_PER_PRODUCT"
	AlertTypeDelayedRepairs         AlertType = "DELAYED_REPAIRS"
	AlertTypeHighReturnRate         AlertType = "HIGH_RETURN_RATE"
	AlertTypeCenterUnderperformance AlertType = "REPAIR_CENTER_UNDERPERFORMANCE"
	AlertTypeDuplicateSerialClaims  AlertType = "DUPLICATE_SERIAL_CLAIMS"
	AlertTypeOutOfWarrantySpike     AlertType = "OUT_OF_WARRANTY_SPIKE"
)

type AlertSeverity string

const (
	AlertSeverityLow    AlertSeverity = "LOW"
	AlertSeverityMedium AlertSeverity = "MEDIUM"
	AlertSeverityHigh   AlertSeverity = "HIGH"
)

type AlertStatus string

const (
	AlertStatusOpen         AlertStatus = "OPEN"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusResolved     AlertStatus = "RESOLVED"
)

// Alert is the record produced by the evaluation engine. The partial unique
// index enforces at most one OPEN alert per (type, correlating key); resolved
// history for the same key accumulates as separate rows.
type Alert struct {
	gorm.Model
	Type           AlertType     `json:"type" gorm:"not null;index:idx_alert_open_key,unique,where:status = 'OPEN'"`
	CorrelatingKey string        `json:"correlating_key" gorm:"not null;index:idx_alert_open_key,unique,where:status = 'OPEN'"`
	Severity       AlertSeverity `json:"severity" gorm:"not null"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	ProductID      *uint         `json:"product_id,omitempty"`
	TicketID       *uint         `json:"ticket_id,omitempty"`
	RepairCenterID *uint         `json:"repair_center_id,omitempty"`
	MetricValue    float64       `json:"metric_value"`
	Threshold      float64       `json:"threshold"`
	Status         AlertStatus   `json:"status" gorm:"not null;index"`
	ResolutionNote string        `json:"resolution_note,omitempty"`
	AcknowledgedBy string        `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty"`
	ResolvedBy     string        `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
}
