// Package ratelimit provides per-key admission control combining two
// algorithms: a sliding request-count window and a refillable token
// bucket. A request is admitted only when both checks pass; state is
// mutated only on admission.
//
// The sliding window bounds request rate (requests per minute inside a
// trailing window); the token bucket bounds request volume, measured in
// caller-estimated cost units. On rejection, RetryAfter reports how long
// until the failing check would admit the request again.
//
//	lim := ratelimit.New(ratelimit.Standard("api"))
//	res := lim.Check("user-1", 25)
//	if !res.Allowed {
//	    // surface res.RetryAfter to the caller
//	}
//
// Per-key state is created lazily and evicted by a periodic janitor once
// idle. All operations are non-blocking in-memory computations.
package ratelimit
