package domain

import (
	"errors"
	"time"
)

// ErrNotSent marks a notification that was given up before anything was
// handed to the messenger, so the subscriber has not seen it.
var ErrNotSent = errors.New("notification not sent")

// CycleStats holds statistics about a single update check cycle.
type CycleStats struct {
	Subscriptions int
	Shows         int
	Fetched       int
	Missing       int
	Notified      int
	Failed        int
	Skipped       int
	Duration      time.Duration
}

// Release is an episode change observed for a show during a cycle.
type Release struct {
	ShowID   int64
	ShowName string
	Episode  Episode
	Notified int
}
