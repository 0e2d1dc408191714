package util

const version = "0.1.0"

// GetVersion returns the application version string.
func GetVersion() string {
	return version
}
