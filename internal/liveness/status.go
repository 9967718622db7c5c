package liveness

// Status is the tri-state reachability of the backend.
type Status int32

const (
	Checking Status = iota
	Healthy
	Unhealthy
)

func (s Status) String() string {
	switch s {
	case Checking:
		return "checking"
	case Healthy:
		return "healthy"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}
