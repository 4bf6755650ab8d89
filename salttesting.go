// Package salttesting carries module-level metadata for the Salt test
// support harness.
package salttesting

// Version is the harness version, set at release time.
const Version = "0.1.0"
