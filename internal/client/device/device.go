// Package device derives a best-effort device identity from host platform
// signals for inclusion in login and session-validation requests.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/courseflow/courseflow/internal/models"
)

// Sentinel values substituted when an individual probe fails. Generate never
// returns an error and never leaves a field empty.
const (
	noHostname  = "unknown-host"
	noMachineID = "no-machine-id"
	noTimezone  = "unknown-timezone"
	noLocale    = "unknown-locale"
)

// machineIDPaths are tried in order for a hardware/installation id.
var machineIDPaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
	"/sys/class/dmi/id/product_uuid",
}

// Fingerprinter produces DeviceInfo snapshots. The client name and version
// form the user-agent string.
type Fingerprinter struct {
	appName    string
	appVersion string
}

// New returns a Fingerprinter identifying itself as the given app.
func New(appName, appVersion string) *Fingerprinter {
	return &Fingerprinter{appName: appName, appVersion: appVersion}
}

// Generate reads host platform signals and returns a complete DeviceInfo.
// Probes that fail are replaced by sentinel strings, so every field is
// always populated.
func (f *Fingerprinter) Generate() models.DeviceInfo {
	info := models.DeviceInfo{
		UserAgent: fmt.Sprintf("%s/%s (%s; %s)", f.appName, f.appVersion, runtime.GOOS, runtime.GOARCH),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
		CPUCount:  strconv.Itoa(runtime.NumCPU()),
		Hostname:  hostname(),
		Timezone:  timezone(),
		Language:  locale(),
		MachineID: machineID(),
	}
	info.Hash = hash(info)
	return info
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return noHostname
	}
	return h
}

func timezone() string {
	name, _ := time.Now().Zone()
	if name == "" {
		return noTimezone
	}
	return name
}

func locale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return noLocale
}

func machineID() string {
	for _, path := range machineIDPaths {
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(b)); id != "" {
			return id
		}
	}
	return noMachineID
}

// hash digests every signal into a single comparable value, the equivalent
// of the browser canvas-rendering hash.
func hash(info models.DeviceInfo) string {
	data := strings.Join([]string{
		info.UserAgent,
		info.Platform,
		info.Arch,
		info.Hostname,
		info.CPUCount,
		info.Timezone,
		info.Language,
		info.MachineID,
	}, "|")
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
