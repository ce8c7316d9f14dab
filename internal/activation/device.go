package activation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/elastic/go-sysinfo"
)

// DefaultDMIDir is the Linux DMI identity directory.
const DefaultDMIDir = "/sys/class/dmi/id"

// fallbackIdentity fills brand and model when DMI has no value.
const fallbackIdentity = "unknown"

// DeviceInfoSource returns live device identity. It is called on every
// submission attempt.
type DeviceInfoSource interface {
	DeviceInfo() (DeviceInfo, error)
}

// HostInfo reads identity from DMI and the host's unique ID.
type HostInfo struct {
	// DMIDir overrides DefaultDMIDir.
	DMIDir string
	// Brand and Model override the DMI vendor and product name when set.
	Brand string
	Model string
	// hostID returns a stable machine identifier. Defaults to go-sysinfo.
	hostID func() (string, error)
}

// NewHostInfo creates a HostInfo with optional brand/model overrides.
func NewHostInfo(brand, model string) *HostInfo {
	return &HostInfo{Brand: brand, Model: model, hostID: sysinfoHostID}
}

// DeviceInfo reads the device identity.
func (h *HostInfo) DeviceInfo() (DeviceInfo, error) {
	dir := h.DMIDir
	if dir == "" {
		dir = DefaultDMIDir
	}
	idFn := h.hostID
	if idFn == nil {
		idFn = sysinfoHostID
	}

	id, err := idFn()
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("device id: %w", err)
	}

	info := DeviceInfo{
		Brand:    h.Brand,
		Model:    h.Model,
		Serial:   readDMI(dir, "product_serial"),
		DeviceID: id,
	}
	if info.Brand == "" {
		info.Brand = orUnknown(readDMI(dir, "sys_vendor"))
	}
	if info.Model == "" {
		info.Model = orUnknown(readDMI(dir, "product_name"))
	}
	return info, nil
}

func sysinfoHostID() (string, error) {
	host, err := sysinfo.Host()
	if err != nil {
		return "", fmt.Errorf("read host info: %w", err)
	}
	info := host.Info()
	if info.UniqueID != "" {
		return info.UniqueID, nil
	}
	if info.Hostname != "" {
		return info.Hostname, nil
	}
	return "", fmt.Errorf("host has no unique id or hostname")
}

func orUnknown(s string) string {
	if s == "" {
		return fallbackIdentity
	}
	return s
}

func readDMI(dir, name string) string {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
