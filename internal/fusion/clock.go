package fusion

import "time"

// DeltaTracker holds the time of the last processed event and reports the
// elapsed seconds between consecutive events. Both sensor streams feed the
// same tracker: the filter runs against one logical clock, not one per
// channel, so interleaving changes the effective dt each channel sees.
type DeltaTracker struct {
	last   time.Time
	primed bool
}

// Elapsed returns the seconds elapsed since the previous event and advances
// the tracker. The first call for the tracker's lifetime only stores now and
// returns ok=false, signalling that the cycle has no valid dt and must be
// skipped.
//
// A clock regression produces a negative dt which is passed through
// unmodified; upstream timestamps are assumed monotonic.
func (d *DeltaTracker) Elapsed(now time.Time) (dt float64, ok bool) {
	if !d.primed {
		d.last = now
		d.primed = true
		return 0, false
	}
	dt = now.Sub(d.last).Seconds()
	d.last = now
	return dt, true
}
