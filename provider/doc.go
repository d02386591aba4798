// Package provider defines the upstream provider model for llmguard:
// static provider configuration, the name-keyed registry of provider
// records, the connectivity probe contract, and per-provider usage
// statistics.
//
// A Record combines immutable configuration (model id, endpoint, timeout)
// with mutable health state. Health fields are written only by the health
// monitor; usage statistics are written only through Stats after each
// real upstream call.
//
// Providers form a closed set of roles: one primary plus fallbacks.
// Adding a provider is a configuration change, not a code change.
package provider
