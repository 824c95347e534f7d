package models

import (
	"gorm.io/gorm"
)

type TicketType string

const (
	TicketTypeRepair TicketType = "REPAIR"
	TicketTypeReturn TicketType = "RETURN"
)

type TicketStatus string

const (
	TicketStatusOpen                  TicketStatus = "OPEN"
	TicketStatusUnderReview           TicketStatus = "UNDER_REVIEW"
	TicketStatusInRepair              TicketStatus = "IN_REPAIR"
	TicketStatusAwaitingCustomer      TicketStatus = "AWAITING_CUSTOMER"
	TicketStatusResolved              TicketStatus = "RESOLVED"
	TicketStatusRejected              TicketStatus = "REJECTED"
	TicketStatusCancelled             TicketStatus = "CANCELLED"
	TicketStatusReturnRequested       TicketStatus = "RETURN_REQUESTED"
	TicketStatusReturnApproved        TicketStatus = "RETURN_APPROVED"
	TicketStatusReturnCompleted       TicketStatus = "RETURN_COMPLETED"
	TicketStatusReplacementApproved   TicketStatus = "REPLACEMENT_APPROVED"
	TicketStatusRejectedOutOfWarranty TicketStatus = "REJECTED_OUT_OF_WARRANTY"
)

// IsTerminalSuccess reports whether the ticket concluded favorably, for the
// purposes of a repair center's resolved ratio.
func (s TicketStatus) IsTerminalSuccess() bool {
	switch s {
	case TicketStatusResolved, TicketStatusReturnCompleted, TicketStatusReplacementApproved:
		return true
	default:
		return false
	}
}

// Product is a warranty-covered product referenced by tickets and alerts.
type Product struct {
	gorm.Model
	SKU  string `gorm:"uniqueIndex;not null" json:"sku"`
	Name string `json:"name"`
}

// RepairCenter is a service location that tickets are routed to.
type RepairCenter struct {
	gorm.Model
	Name     string `gorm:"uniqueIndex;not null" json:"name"`
	Location string `json:"location"`
}

// Ticket is a customer repair/return request. The evaluation engine reads
// tickets and never writes them; ticket workflow lives elsewhere.
type Ticket struct {
	gorm.Model
	TicketNumber     string        `gorm:"uniqueIndex;not null" json:"ticket_number"`
	TicketType       TicketType    `gorm:"not null" json:"ticket_type"`
	Status           TicketStatus  `gorm:"not null;index" json:"status"`
	SerialNumber     string        `gorm:"index" json:"serial_number"`
	OwnerID          string        `gorm:"index" json:"owner_id"`
	CustomerEmail    string        `json:"customer_email"`
	WarrantyEligible bool          `json:"warranty_eligible"`
	ProductID        uint          `gorm:"index" json:"product_id"`
	Product          Product       `json:"product"`
	RepairCenterID   *uint         `gorm:"index" json:"repair_center_id,omitempty"`
	RepairCenter     *RepairCenter `json:"repair_center,omitempty"`
}
