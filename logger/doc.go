// Package logger provides structured logging for llmguard built on zerolog.
//
// Components obtain a tagged logger via Get and log with message + field maps:
//
//	log := logger.Get("health")
//	log.Info("probe complete", logger.Fields(
//	    logger.FieldProvider, "primary",
//	    logger.FieldLatency, latency.Milliseconds(),
//	))
//
// The global logger is configured once at startup with Init; tests and
// embedded uses can construct isolated instances with New.
package logger
