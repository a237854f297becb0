package ratelimit

// Stats exposes limiter counters for monitoring.
type Stats struct {
	// Allowed is the number of requests that found capacity.
	Allowed int64
	// Denied counts failed capacity checks, including each unsuccessful poll.
	Denied int64
	// Waits counts requests that had to poll for capacity.
	Waits int64
	// Capacity is the current bucket state.
	Capacity Capacity
}

// Stats returns a snapshot of the limiter's counters.
func (l *Limiter) Stats() Stats {
	return Stats{
		Allowed:  l.allowed.Load(),
		Denied:   l.denied.Load(),
		Waits:    l.waits.Load(),
		Capacity: l.Capacity(),
	}
}
