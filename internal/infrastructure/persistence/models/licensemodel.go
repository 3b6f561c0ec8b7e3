package models

import (
	"time"

	"gorm.io/datatypes"
)

type LicenseModel struct {
	ID             uint      `gorm:"primaryKey"`
	SubscriptionID string    `gorm:"uniqueIndex;size:128;not null"`
	CustomerID     string    `gorm:"size:128;not null;default:''"`
	CustomerEmail  string    `gorm:"index;size:320;not null"`
	Tier           string    `gorm:"size:32;not null"`
	BillingPeriod  string    `gorm:"size:32;not null"`
	LicenseKey     string    `gorm:"index;size:64;not null"`
	ExpiresAt      time.Time `gorm:"not null"`
	EmailSentAt    *time.Time
	LastResentAt   *time.Time
	Metadata       datatypes.JSONMap `gorm:"type:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (LicenseModel) TableName() string {
	return "licenses"
}

type ProcessedEventModel struct {
	EventID     string    `gorm:"primaryKey;size:255"`
	ProcessedAt time.Time `gorm:"not null"`
}

func (ProcessedEventModel) TableName() string {
	return "processed_events"
}

type DeviceActivationModel struct {
	ID                    uint   `gorm:"primaryKey"`
	LicenseKey            string `gorm:"uniqueIndex:uk_activation_key_device;size:64;not null"`
	DeviceID              string `gorm:"uniqueIndex:uk_activation_key_device;size:128;not null"`
	SubscriptionID        string `gorm:"index;size:128;not null"`
	CustomerEmail         string `gorm:"size:320;not null"`
	DeviceFingerprintHash string `gorm:"size:128"`
	DeviceName            string `gorm:"size:255"`
	Platform              string `gorm:"size:64"`
	AppVersion            string `gorm:"size:64"`
	CreatedAt             time.Time
	LastSeenAt            time.Time `gorm:"not null"`
}

func (DeviceActivationModel) TableName() string {
	return "device_activations"
}

type RateLimitCounterModel struct {
	Key          string `gorm:"column:bucket_key;primaryKey;size:255"`
	WindowStart  int64  `gorm:"not null"`
	RequestCount int    `gorm:"not null"`
}

func (RateLimitCounterModel) TableName() string {
	return "rate_limit_counters"
}
