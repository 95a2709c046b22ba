package cache

import "time"

// Status is the lifecycle state of a cache entry.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusFresh
	StatusStale
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is a point-in-time copy of one cached resource.
//
// Status loading implies exactly one fetch owns the entry. Err holds the most
// recent fetch failure; Value keeps the last good value across failures.
type Entry struct {
	Key       string
	Status    Status
	Value     any
	Err       error
	Version   uint64
	FetchedAt time.Time
}

// HasValue reports whether a value has ever been stored.
func (e Entry) HasValue() bool {
	return e.Value != nil
}

// Value extracts the entry's value as T.
func Value[T any](e Entry) (T, bool) {
	v, ok := e.Value.(T)
	return v, ok
}
