// Package config loads and validates llmguard configuration.
//
// Configuration is read from a YAML file plus environment overlay via
// Viper, with .env support through godotenv. Each section carries
// ApplyDefaults and feeds a concrete runtime config (providers, rate
// limiting, health, failover, logging, observability). Struct tags are
// validated with go-playground/validator before cross-field checks run.
//
// # Usage
//
//	var cfg config.Config
//	if err := config.Load("llmguard", &cfg); err != nil { ... }
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil { ... }
package config
