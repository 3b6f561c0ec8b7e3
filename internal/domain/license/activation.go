package license

import "time"

// DeviceInfo is what a client reports about the machine it runs on. Only a
// hash of the hardware fingerprint ever leaves the device.
type DeviceInfo struct {
	DeviceID        string
	FingerprintHash string
	Name            string
	Platform        string
	AppVersion      string
}

// HasDevice reports whether the client sent a device id.
func (d DeviceInfo) HasDevice() bool {
	return d.DeviceID != ""
}

// DeviceActivation records a device seen with a license key.
type DeviceActivation struct {
	ID              uint
	LicenseKey      string
	SubscriptionID  string
	Email           string
	DeviceID        string
	FingerprintHash string
	DeviceName      string
	Platform        string
	AppVersion      string
	CreatedAt       time.Time
	LastSeenAt      time.Time
}
