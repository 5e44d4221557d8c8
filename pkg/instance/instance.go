package instance

import "os"

// GetID returns the process instance identifier for log correlation.
func GetID() string {
	if id := os.Getenv("PROMPTFORGE_INSTANCE_ID"); id != "" {
		return id
	}
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	return "local"
}
