// Package version exposes build version information for llmguard.
//
// Version, git commit, and build time are set at compile time via
// -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/llmguard/version.Version=1.0.0"
//
// When ldflags are absent, values are filled from the binary's embedded
// VCS build info where available.
package version
