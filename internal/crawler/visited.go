package crawler

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/nao1215/sitecrawl/internal/model"
)

// visitedShards is the number of independently locked partitions of a
// VisitedSet. It must be a power of two.
const visitedShards = 32

// VisitedSet records the URLs already dispatched to a fetch attempt.
// It is safe for concurrent use. All methods normalize their argument.
type VisitedSet struct {
	shards [visitedShards]visitedShard
}

// visitedShard is one lock-protected partition.
type visitedShard struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewVisitedSet creates an empty VisitedSet.
func NewVisitedSet() *VisitedSet {
	v := &VisitedSet{}
	for i := range v.shards {
		v.shards[i].urls = make(map[string]struct{})
	}
	return v
}

// TryClaim inserts url and reports whether this call inserted it.
// Exactly one of any number of concurrent claims for the same URL wins.
func (v *VisitedSet) TryClaim(url string) bool {
	key := model.NormalizeURL(url)
	s := v.shard(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.urls[key]; ok {
		return false
	}
	s.urls[key] = struct{}{}
	return true
}

// Contains reports whether url has been claimed.
func (v *VisitedSet) Contains(url string) bool {
	key := model.NormalizeURL(url)
	s := v.shard(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.urls[key]
	return ok
}

// Len returns the number of claimed URLs.
func (v *VisitedSet) Len() int {
	n := 0
	for i := range v.shards {
		s := &v.shards[i]
		s.mu.Lock()
		n += len(s.urls)
		s.mu.Unlock()
	}
	return n
}

func (v *VisitedSet) shard(key string) *visitedShard {
	return &v.shards[xxhash.Sum64String(key)&(visitedShards-1)]
}
