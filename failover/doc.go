// Package failover implements the circuit-breaker state machine that
// protects the primary provider.
//
// The breaker is closed while the primary behaves, opens after a run of
// consecutive failures or a sustained error rate, and allows exactly one
// trial request once the recovery timeout passes. A successful trial
// fully resets the breaker; a failed trial pushes the retry time forward.
//
//	fc := failover.NewController(failover.DefaultConfig("primary"))
//	if fc.ShouldUsePrimary() {
//	    // call the primary, then report back
//	    fc.RecordSuccess(latency) // or fc.RecordFailure(err)
//	}
//
// The trial claim happens under the controller lock, so concurrent
// callers past the retry time admit at most one recovery probe.
package failover
