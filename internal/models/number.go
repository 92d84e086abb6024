package models

import "github.com/google/uuid"

// NumberStatus is the lifecycle state of a virtual phone number.
type NumberStatus string

const (
	NumberStatusActive    NumberStatus = "active"
	NumberStatusInactive  NumberStatus = "inactive"
	NumberStatusSuspended NumberStatus = "suspended"
)

// VirtualPhoneNumber is a number record visible only to its owner.
type VirtualPhoneNumber struct {
	BaseModel
	UserID      uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_numbers_owner_number,priority:1" json:"owner"`
	Number      string       `gorm:"size:16;not null;uniqueIndex:idx_numbers_owner_number,priority:2" json:"number"`
	Label       string       `gorm:"size:64" json:"label"`
	CountryCode string       `gorm:"size:2" json:"country_code"`
	Status      NumberStatus `gorm:"size:16;not null" json:"status"`
}

