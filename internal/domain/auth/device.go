package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"
)

// DeviceInfo extracts the device identity from a request. An explicit
// X-Device-ID header wins; otherwise the device is fingerprinted from the
// user agent and client address.
func DeviceInfo(c *fiber.Ctx) (deviceID, userAgent, ipAddress string) {
	userAgent = c.Get(fiber.HeaderUserAgent)
	ipAddress = c.IP()

	deviceID = c.Get("X-Device-ID")
	if deviceID == "" {
		deviceID = c.Get("Device-ID")
	}
	if deviceID == "" {
		deviceID = FingerprintDevice(userAgent, ipAddress)
	}
	return deviceID, userAgent, ipAddress
}

// FingerprintDevice derives a stable device id from the user agent and
// client address. Empty inputs still produce a usable identifier.
func FingerprintDevice(userAgent, ipAddress string) string {
	if userAgent == "" && ipAddress == "" {
		return "unknown"
	}
	sum := sha256.Sum256([]byte(userAgent + ":" + ipAddress))
	return hex.EncodeToString(sum[:])[:16]
}
