package licenseclient

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"os"
	"runtime"
	"strings"
)

// Device is the identity reported with each verification. Only the
// fingerprint hash leaves the machine, never the raw hardware values.
type Device struct {
	ID              string
	FingerprintHash string
	Name            string
	Platform        string
}

func currentDevice(deviceID string) Device {
	hostname, _ := os.Hostname()
	platform := runtime.GOOS + "/" + runtime.GOARCH
	return Device{
		ID:              deviceID,
		FingerprintHash: fingerprint(hostname, primaryMAC(), runtime.GOOS, runtime.GOARCH),
		Name:            hostname,
		Platform:        platform,
	}
}

func fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// primaryMAC returns the hardware address of the first up, non-loopback
// interface, or "" when there is none.
func primaryMAC() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if len(iface.HardwareAddr) > 0 {
			return iface.HardwareAddr.String()
		}
	}
	return ""
}
