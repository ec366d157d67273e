package ratelimit

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Class is an endpoint class selected by path prefix.
type Class struct {
	Name      string
	Prefix    string
	Bandwidth Bandwidth
}

const DefaultClassName = "default"

// DefaultClasses is the endpoint class table served by the API.
func DefaultClasses() []Class {
	return []Class{
		{Name: "auth", Prefix: "/api/auth/", Bandwidth: PerMinute(10)},
		{Name: "messages", Prefix: "/api/messages/", Bandwidth: PerMinute(50)},
		{Name: "public", Prefix: "/api/public/", Bandwidth: PerMinute(200)},
	}
}

// Decision is what the limiter decided for one request.
type Decision struct {
	Key   string
	Class Class
	Probe
}

type Options struct {
	MaxKeys   int
	KeepAlive time.Duration
	Classes   []Class
	Default   Bandwidth
	Now       func() time.Time
}

// Limiter keeps one bucket per identity and endpoint class in a bounded, idle-evicted cache.
type Limiter struct {
	classes []Class
	def     Class
	now     func() time.Time

	mu      sync.Mutex
	buckets *expirable.LRU[string, *Bucket]
}

func New(opts Options) *Limiter {
	if opts.MaxKeys <= 0 {
		opts.MaxKeys = 10000
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = time.Minute
	}
	if opts.Classes == nil {
		opts.Classes = DefaultClasses()
	}
	if opts.Default.Capacity == 0 {
		opts.Default = PerMinute(100)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	classes := append([]Class(nil), opts.Classes...)
	sort.SliceStable(classes, func(i, j int) bool {
		return len(classes[i].Prefix) > len(classes[j].Prefix)
	})

	// Idle buckets expire one refill period plus the keep-alive after their last use.
	ttl := opts.KeepAlive + longestPeriod(classes, opts.Default)
	return &Limiter{
		classes: classes,
		def:     Class{Name: DefaultClassName, Bandwidth: opts.Default},
		now:     opts.Now,
		buckets: expirable.NewLRU[string, *Bucket](opts.MaxKeys, nil, ttl),
	}
}

// Classify returns the class whose prefix is the longest match for path.
func (l *Limiter) Classify(path string) Class {
	for _, c := range l.classes {
		if strings.HasPrefix(path, c.Prefix) {
			return c
		}
	}
	return l.def
}

// Allow consumes one token for identity on path.
func (l *Limiter) Allow(identity, path string) Decision {
	class := l.Classify(path)
	key := identity + ":" + class.Name
	now := l.now()
	probe := l.bucket(key, class.Bandwidth, now).TryConsume(1, now)
	return Decision{Key: key, Class: class, Probe: probe}
}

// Len reports the number of live buckets.
func (l *Limiter) Len() int {
	return l.buckets.Len()
}

func (l *Limiter) bucket(key string, bw Bandwidth, now time.Time) *Bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets.Get(key)
	if !ok {
		b = NewBucket(bw, now)
	}
	// re-adding refreshes the entry's expiry
	l.buckets.Add(key, b)
	return b
}

func longestPeriod(classes []Class, def Bandwidth) time.Duration {
	longest := def.Period
	for _, c := range classes {
		if c.Bandwidth.Period > longest {
			longest = c.Bandwidth.Period
		}
	}
	return longest
}
