package schedule

import "time"

const secondsPerDay = 24 * 60 * 60

// IsDue reports whether a backup is due at now, given the last successful run
// and the configured interval in days. An interval of zero means always due.
// Missed runs are not queued; each call only answers "is it due right now".
func IsDue(now, lastRun time.Time, intervalDays int) bool {
	if intervalDays <= 0 {
		return true
	}
	return now.Unix() >= lastRun.Unix()+int64(intervalDays)*secondsPerDay
}

// NextDue returns the earliest time IsDue becomes true again after lastRun.
func NextDue(lastRun time.Time, intervalDays int) time.Time {
	if intervalDays <= 0 {
		return lastRun
	}
	return time.Unix(lastRun.Unix()+int64(intervalDays)*secondsPerDay, 0)
}
