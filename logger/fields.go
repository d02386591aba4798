package logger

// Standard field key constants for structured logging.
const (
	FieldComponent  = "component"
	FieldProvider   = "provider"
	FieldStrategy   = "strategy"
	FieldKey        = "key"
	FieldStatus     = "status"
	FieldReason     = "reason"
	FieldError      = "error"
	FieldLatency    = "latency_ms"
	FieldRetryAfter = "retry_after_s"
	FieldRemaining  = "remaining"
	FieldFailures   = "failures"
	FieldSelection  = "selection_id"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	logger.Info("selected", logger.Fields("provider", "primary", "reason", r))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(provider string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldProvider: provider,
		FieldError:    err.Error(),
	}
}
