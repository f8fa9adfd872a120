package persist

import "time"

// Stats summarizes one WriteObject or WriteArray call.
type Stats struct {
	Record   string
	Objects  int // objects written, nested ones included
	Inserted int64
	Updated  int64
	Deleted  int64
	Duration time.Duration
	Err      error // nil when the transaction committed
}

// Observer receives the statistics of every write call after its
// transaction has been committed or rolled back.
type Observer interface {
	ObserveWrite(stats Stats)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(stats Stats)

func (f ObserverFunc) ObserveWrite(stats Stats) { f(stats) }
