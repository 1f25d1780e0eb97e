package host

// Status values reported by Running.Status.
const (
	// StatusHealthy indicates the sandbox instance is alive and accepts calls.
	StatusHealthy = "healthy"

	// StatusUnhealthy indicates the instance is gone; every call fails with
	// CLOSED.
	StatusUnhealthy = "unhealthy"
)

// Status describes the state of a running host.
type Status struct {
	// Status is StatusHealthy or StatusUnhealthy.
	Status string `json:"status"`

	// Message provides a human-readable description of the status.
	Message string `json:"message,omitempty"`

	// Details contains identifiers and the reason an instance was lost.
	Details map[string]any `json:"details,omitempty"`
}

// IsHealthy returns true if the status is StatusHealthy.
func (s Status) IsHealthy() bool {
	return s.Status == StatusHealthy
}

func healthy(message string, details map[string]any) Status {
	return Status{Status: StatusHealthy, Message: message, Details: details}
}

func unhealthy(message string, details map[string]any) Status {
	return Status{Status: StatusUnhealthy, Message: message, Details: details}
}
