// Package common holds identifiers shared across the tracker binaries.
package common

// PackageName identifies this service in logs and metrics.
const PackageName = "epidemic-tracker"

// Version is set at build time via -ldflags.
var Version = "dev"
