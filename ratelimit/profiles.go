package ratelimit

// Configuration profiles. Profiles differ only in requests per minute,
// tokens per minute, and burst size; all other settings keep defaults.

// Conservative returns a profile for strict upstream quotas.
func Conservative(name string) Config {
	return Config{
		Name:              name,
		RequestsPerMinute: 10,
		TokensPerMinute:   10_000,
		BurstSize:         2_000,
	}
}

// Standard returns the default production profile.
func Standard(name string) Config {
	return Config{
		Name:              name,
		RequestsPerMinute: 30,
		TokensPerMinute:   50_000,
		BurstSize:         10_000,
	}
}

// Aggressive returns a profile for high-throughput deployments.
func Aggressive(name string) Config {
	return Config{
		Name:              name,
		RequestsPerMinute: 120,
		TokensPerMinute:   200_000,
		BurstSize:         40_000,
	}
}

// Development returns a near-unlimited profile for local work.
func Development(name string) Config {
	return Config{
		Name:              name,
		RequestsPerMinute: 1_000,
		TokensPerMinute:   1_000_000,
		BurstSize:         200_000,
	}
}

// ProfileByName returns the named profile, or false for unknown names.
func ProfileByName(profile, name string) (Config, bool) {
	switch profile {
	case "conservative":
		return Conservative(name), true
	case "standard":
		return Standard(name), true
	case "aggressive":
		return Aggressive(name), true
	case "development":
		return Development(name), true
	default:
		return Config{}, false
	}
}
