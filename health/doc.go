// Package health maintains the current belief about each provider's
// reachability and latency class.
//
// A Monitor probes providers through the registry's Prober, classifies
// results by latency thresholds (healthy, degraded, unhealthy), caches
// them, and runs an optional background loop that re-probes every
// provider on a fixed interval. Probe failures never propagate to
// callers; they are represented as unhealthy results carrying the error.
//
//	mon := health.NewMonitor(registry, prober, health.DefaultConfig())
//	mon.Start(ctx)
//	defer mon.Stop()
//	res := mon.Check(ctx, "primary")
//
// Start and Stop are idempotent, and the loop holds no lock while a
// probe is in flight.
package health
