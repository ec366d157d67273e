package ratelimit

import (
	"sync"
	"time"
)

// Bandwidth describes a bucket: Capacity tokens, Refill tokens added at the end of every Period.
type Bandwidth struct {
	Capacity int
	Refill   int
	Period   time.Duration
}

// PerMinute is a bucket of n tokens refilled with n tokens every minute.
func PerMinute(n int) Bandwidth {
	return Bandwidth{Capacity: n, Refill: n, Period: time.Minute}
}

// Probe is the outcome of one TryConsume call.
type Probe struct {
	Consumed      bool
	Remaining     int
	WaitForRefill time.Duration
}

// Bucket is a token bucket with interval refill. It is safe for concurrent use.
type Bucket struct {
	mu         sync.Mutex
	bw         Bandwidth
	tokens     int
	lastRefill time.Time
}

func NewBucket(bw Bandwidth, now time.Time) *Bucket {
	return &Bucket{bw: bw, tokens: bw.Capacity, lastRefill: now}
}

// TryConsume takes n tokens if available. A rejected call leaves the bucket unchanged.
func (b *Bucket) TryConsume(n int, now time.Time) Probe {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if b.tokens < n {
		return Probe{Remaining: b.tokens, WaitForRefill: b.waitFor(n, now)}
	}
	b.tokens -= n
	probe := Probe{Consumed: true, Remaining: b.tokens}
	if b.tokens == 0 {
		probe.WaitForRefill = b.waitFor(1, now)
	}
	return probe
}

// Available reports the tokens left at now.
func (b *Bucket) Available(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(now)
	return b.tokens
}

func (b *Bucket) refill(now time.Time) {
	if b.bw.Period <= 0 || !now.After(b.lastRefill) {
		return
	}
	periods := int(now.Sub(b.lastRefill) / b.bw.Period)
	if periods == 0 {
		return
	}
	b.tokens += periods * b.bw.Refill
	if b.tokens > b.bw.Capacity {
		b.tokens = b.bw.Capacity
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(periods) * b.bw.Period)
}

// waitFor returns how long until n tokens are available, assuming no other consumer.
func (b *Bucket) waitFor(n int, now time.Time) time.Duration {
	missing := n - b.tokens
	if missing <= 0 || b.bw.Refill <= 0 {
		return 0
	}
	periods := (missing + b.bw.Refill - 1) / b.bw.Refill
	next := b.lastRefill.Add(time.Duration(periods) * b.bw.Period)
	return next.Sub(now)
}
