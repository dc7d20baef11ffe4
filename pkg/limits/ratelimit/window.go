package ratelimit

import "time"

// SlidingWindow counts events over a rolling time period using a fixed ring
// of time buckets. A one minute window with one second buckets holds 60
// buckets.
//
// SlidingWindow is not safe for concurrent use; Limiter serialises access.
type SlidingWindow struct {
	window     time.Duration
	bucketSize time.Duration
	buckets    []bucket
	head       int
}

type bucket struct {
	timestamp time.Time
	value     int64
}

// NewSlidingWindow creates a window of the given span and granularity.
func NewSlidingWindow(window, bucketSize time.Duration) *SlidingWindow {
	if bucketSize <= 0 {
		bucketSize = window
	}
	n := int(window / bucketSize)
	if n == 0 {
		n = 1
	}
	return &SlidingWindow{
		window:     window,
		bucketSize: bucketSize,
		buckets:    make([]bucket, n),
	}
}

// Window returns the span of the window.
func (sw *SlidingWindow) Window() time.Duration {
	return sw.window
}

// Add counts value at now.
func (sw *SlidingWindow) Add(now time.Time, value int64) {
	sw.prune(now)
	sw.current(now).value += value
}

// Sum returns the count inside the window ending at now.
func (sw *SlidingWindow) Sum(now time.Time) int64 {
	sw.prune(now)
	var sum int64
	for i := range sw.buckets {
		if !sw.buckets[i].timestamp.IsZero() {
			sum += sw.buckets[i].value
		}
	}
	return sum
}

// RetryAfter returns how long until the oldest counted bucket leaves the
// window, or zero when the window is empty.
func (sw *SlidingWindow) RetryAfter(now time.Time) time.Duration {
	sw.prune(now)
	var oldest time.Time
	for i := range sw.buckets {
		ts := sw.buckets[i].timestamp
		if ts.IsZero() || sw.buckets[i].value == 0 {
			continue
		}
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
	}
	if oldest.IsZero() {
		return 0
	}
	if d := oldest.Add(sw.window).Sub(now); d > 0 {
		return d
	}
	return 0
}

// Reset clears all buckets.
func (sw *SlidingWindow) Reset() {
	for i := range sw.buckets {
		sw.buckets[i] = bucket{}
	}
	sw.head = 0
}

// prune clears buckets that fell out of the window.
func (sw *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-sw.window)
	for i := range sw.buckets {
		if ts := sw.buckets[i].timestamp; !ts.IsZero() && !ts.After(cutoff) {
			sw.buckets[i] = bucket{}
		}
	}
}

// current returns the bucket for now, reusing an empty or the oldest slot
// when no bucket exists yet.
func (sw *SlidingWindow) current(now time.Time) *bucket {
	ts := now.Truncate(sw.bucketSize)

	if sw.buckets[sw.head].timestamp.Equal(ts) {
		return &sw.buckets[sw.head]
	}
	for i := range sw.buckets {
		if sw.buckets[i].timestamp.Equal(ts) {
			sw.head = i
			return &sw.buckets[i]
		}
	}

	target := -1
	for i := range sw.buckets {
		if sw.buckets[i].timestamp.IsZero() {
			target = i
			break
		}
	}
	if target == -1 {
		target = 0
		for i := 1; i < len(sw.buckets); i++ {
			if sw.buckets[i].timestamp.Before(sw.buckets[target].timestamp) {
				target = i
			}
		}
	}

	sw.buckets[target] = bucket{timestamp: ts}
	sw.head = target
	return &sw.buckets[target]
}
