package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// appID scopes the machine ID so the raw ID is never published.
const appID = "lora.go/gateway"

// MachineID retrieves the unique ID identifying the machine.
// It falls back to the host name.
func MachineID() string {
	id, err := machineid.ProtectedID(appID)
	if err == nil {
		return id[:16]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "gateway"
}
