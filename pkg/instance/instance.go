// Package instance names the running process in logs and lock ownership.
package instance

import (
	"os"

	"github.com/angelmondragon/gatewaysync/pkg/env"
)

const defaultID = "gatewaysync-0"

// ID returns GATEWAYSYNC_INSTANCE_ID, the host name, or a fixed default.
func ID() string {
	if id := env.Get("INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}
