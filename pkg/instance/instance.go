package instance

import (
	"os"
	"strings"
)

const fallbackID = "local"

var idEnvVars = []string{"STOREFRONT_INSTANCE_ID", "DYNO", "HOSTNAME"}

// GetID names the running process for logs: an explicit instance id, the
// platform dyno name, or the container hostname.
func GetID() string {
	for _, key := range idEnvVars {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	return fallbackID
}
