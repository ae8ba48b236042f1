package reliability

import "time"

// IsRetryableHTTPStatus classifies upstream statuses worth another attempt.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 408, 425, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryableStreamMessageType classifies websocket error frames from the TTS provider.
func IsRetryableStreamMessageType(messageType string) bool {
	switch messageType {
	case "rate_limited", "resource_exhausted", "queue_overflow", "error":
		return true
	default:
		return false
	}
}

// LinearBackoff waits base*attempt, capped. Attempt is 1-based; zero base disables waiting.
func LinearBackoff(attempt int, base, cap time.Duration) time.Duration {
	if base <= 0 || attempt <= 0 {
		return 0
	}
	d := base * time.Duration(attempt)
	if cap > 0 && d > cap {
		return cap
	}
	return d
}
