package handlers

import (
	"time"

	"github.com/flaco-inc/flaco/internal/domain/license"
)

type VerifyLicenseRequest struct {
	Email                 string `json:"email" binding:"required,max=320"`
	LicenseKey            string `json:"license_key" binding:"required,max=64"`
	DeviceID              string `json:"device_id" binding:"omitempty,max=128"`
	DeviceFingerprintHash string `json:"device_fingerprint_hash" binding:"omitempty,max=128"`
	DeviceName            string `json:"device_name" binding:"omitempty,max=255"`
	Platform              string `json:"platform" binding:"omitempty,max=64"`
	AppVersion            string `json:"app_version" binding:"omitempty,max=64"`
}

func (r *VerifyLicenseRequest) device() license.DeviceInfo {
	return license.DeviceInfo{
		DeviceID:        r.DeviceID,
		FingerprintHash: r.DeviceFingerprintHash,
		Name:            r.DeviceName,
		Platform:        r.Platform,
		AppVersion:      r.AppVersion,
	}
}

// VerifyLicenseResponse is flat so that clients need not unwrap an envelope.
// Success means the request was evaluated; Valid carries the verdict.
type VerifyLicenseResponse struct {
	Success bool   `json:"success"`
	Valid   bool   `json:"valid"`
	Tier    string `json:"tier,omitempty"`
	Expires string `json:"expires,omitempty"`
	Email   string `json:"email,omitempty"`
	Receipt string `json:"receipt,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ResendLicenseRequest struct {
	Email string `json:"email" binding:"required,email"`
	Tier  string `json:"tier" binding:"omitempty,oneof=pro enterprise"`
}

type LicenseCredentialsRequest struct {
	Email      string `json:"email" binding:"required"`
	LicenseKey string `json:"license_key" binding:"required"`
}

type ActivationDTO struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name,omitempty"`
	Platform   string    `json:"platform,omitempty"`
	AppVersion string    `json:"app_version,omitempty"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

type ResetActivationsResponse struct {
	Reset int64 `json:"reset"`
}

func toActivationDTOs(activations []*license.DeviceActivation) []ActivationDTO {
	out := make([]ActivationDTO, 0, len(activations))
	for _, a := range activations {
		out = append(out, ActivationDTO{
			DeviceID:   a.DeviceID,
			DeviceName: a.DeviceName,
			Platform:   a.Platform,
			AppVersion: a.AppVersion,
			FirstSeen:  a.CreatedAt,
			LastSeen:   a.LastSeenAt,
		})
	}
	return out
}

type LicenseDTO struct {
	SubscriptionID string         `json:"subscription_id"`
	CustomerID     string         `json:"customer_id,omitempty"`
	Email          string         `json:"email"`
	Tier           string         `json:"tier"`
	BillingPeriod  string         `json:"billing_period"`
	LicenseKey     string         `json:"license_key"`
	ExpiresAt      time.Time      `json:"expires_at"`
	EmailSentAt    *time.Time     `json:"email_sent_at,omitempty"`
	LastResentAt   *time.Time     `json:"last_resent_at,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func toLicenseDTO(lic *license.License) *LicenseDTO {
	return &LicenseDTO{
		SubscriptionID: lic.SubscriptionID,
		CustomerID:     lic.CustomerID,
		Email:          lic.Email,
		Tier:           lic.Tier.String(),
		BillingPeriod:  lic.BillingPeriod.String(),
		LicenseKey:     lic.LicenseKey,
		ExpiresAt:      lic.ExpiresAt,
		EmailSentAt:    lic.EmailSentAt,
		LastResentAt:   lic.LastResentAt,
		Metadata:       lic.Metadata,
		CreatedAt:      lic.CreatedAt,
		UpdatedAt:      lic.UpdatedAt,
	}
}

type ChangeEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	// SendEmail defaults to true.
	SendEmail *bool `json:"send_email"`
}

type ChangeEmailResponse struct {
	License    *LicenseDTO `json:"license"`
	EmailSent  bool        `json:"email_sent"`
	EmailError string      `json:"email_error,omitempty"`
}
