package build

import (
	classyversion "go.szostok.io/version"
)

// Version returns the version string embedded at build time.
func Version() string {
	return classyversion.Get().Version
}
