package resilience

import (
	"time"

	"go.uber.org/zap"
)

// ServiceRetry returns the default retry policy for calls to one upstream
// service. Each retry is logged under the service and operation names.
func ServiceRetry(service, operation string, maxAttempts int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	cfg.OnRetry = RetryLogger(service, operation)
	return cfg
}

// FromCircuitConfig converts config values to a CircuitBreakerConfig whose
// state transitions are logged under service.
func FromCircuitConfig(service string, failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	cfg.OnStateChange = StateLogger(service)
	return cfg
}

// StateLogger returns an OnStateChange callback that logs breaker transitions.
func StateLogger(service string) func(from, to CircuitState) {
	return func(from, to CircuitState) {
		log := zap.L().With(
			zap.String("service", service),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		if to == CircuitOpen {
			log.Warn("circuit breaker opened")
			return
		}
		log.Info("circuit breaker state change")
	}
}
