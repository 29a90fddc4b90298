// Package env reads process settings that live outside the envconfig tree,
// such as logger bootstrap knobs read before config.Load.
package env

import (
	"os"
	"strings"
)

// Prefix namespaces every variable this service reads.
const Prefix = "GATEWAYSYNC_"

// Get returns GATEWAYSYNC_<key>, then the bare key, then fallback.
func Get(key, fallback string) string {
	key = strings.TrimPrefix(key, Prefix)
	for _, candidate := range []string{Prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(candidate)); val != "" {
			return val
		}
	}
	return fallback
}
