// Package cache keeps rewrite results of recently processed files so an
// unchanged file under an unchanged rule set is not parsed twice.
//
// Entries are keyed by a digest of the rule set fingerprint, the language and
// the file content, and stored LZ4-compressed. Eviction is size-aware: among
// the least recently used entries, large rarely read ones go first.
package cache

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pierrec/lz4/v4"
)

// DefaultMaxSize is the default budget for compressed entries (64 MB).
const DefaultMaxSize = 64 * 1024 * 1024

const (
	bytesPerKB         = 1024.0
	evictionSampleSize = 5
)

var errCorruptEntry = errors.New("cache: corrupt entry")

// Key identifies one cached result.
type Key [sha256.Size]byte

// NewKey derives the key for content processed as language under the rule set
// identified by fingerprint.
func NewKey(fingerprint, language string, content []byte) Key {
	h := sha256.New()

	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write(content)

	var key Key

	copy(key[:], h.Sum(nil))

	return key
}

// LRU is a size-bounded cache of compressed byte payloads. It is safe for
// concurrent use.
type LRU struct {
	mu          sync.Mutex
	entries     map[Key]*entry
	head        *entry // Most recently used.
	tail        *entry // Least recently used.
	maxSize     int64
	currentSize int64

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key         Key
	data        []byte // LZ4 block.
	rawSize     int
	accessCount int64
	prev        *entry
	next        *entry
}

func (e *entry) size() int64 {
	return int64(len(e.data))
}

// evictionCost favours keeping small, frequently read entries.
func (e *entry) evictionCost() float64 {
	sizeKB := float64(e.size()) / bytesPerKB
	if sizeKB < 1 {
		sizeKB = 1
	}

	return float64(e.accessCount) / sizeKB
}

// New creates a cache holding at most maxSize compressed bytes. A
// non-positive size selects DefaultMaxSize.
func New(maxSize int64) *LRU {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	return &LRU{
		entries: make(map[Key]*entry),
		maxSize: maxSize,
	}
}

// Get returns the decompressed payload stored under key.
func (c *LRU) Get(key Key) ([]byte, bool) {
	c.mu.Lock()

	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)

		return nil, false
	}

	e.accessCount++
	c.moveToFront(e)

	data, rawSize := e.data, e.rawSize

	c.mu.Unlock()

	out, err := decompress(data, rawSize)
	if err != nil {
		c.misses.Add(1)

		return nil, false
	}

	c.hits.Add(1)

	return out, true
}

// Put stores payload under key. Payloads whose compressed form exceeds the
// whole budget are dropped.
func (c *LRU) Put(key Key, payload []byte) {
	data, err := compress(payload)
	if err != nil {
		return
	}

	size := int64(len(data))
	if size > c.maxSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.accessCount++
		c.moveToFront(e)

		return
	}

	for c.currentSize+size > c.maxSize && c.tail != nil {
		c.evictLowestCost()
	}

	e := &entry{
		key:         key,
		data:        data,
		rawSize:     len(payload),
		accessCount: 1,
	}

	c.entries[key] = e
	c.currentSize += size
	c.addToFront(e)
}

// Stats holds cache counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Entries     int
	CurrentSize int64
	MaxSize     int64
}

// HitRate returns hits / lookups, or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// Stats returns a snapshot of the cache counters.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Entries:     len(c.entries),
		CurrentSize: c.currentSize,
		MaxSize:     c.maxSize,
	}
}

// Clear drops every entry.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key]*entry)
	c.head = nil
	c.tail = nil
	c.currentSize = 0
}

func (c *LRU) moveToFront(e *entry) {
	if e == c.head {
		return
	}

	c.unlink(e)
	c.addToFront(e)
}

func (c *LRU) addToFront(e *entry) {
	e.prev = nil
	e.next = c.head

	if c.head != nil {
		c.head.prev = e
	}

	c.head = e

	if c.tail == nil {
		c.tail = e
	}
}

func (c *LRU) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}

	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

// evictLowestCost samples the tail of the recency list and evicts the
// cheapest entry among the samples.
func (c *LRU) evictLowestCost() {
	victim := c.tail
	if victim == nil {
		return
	}

	lowest := victim.evictionCost()

	candidate := victim.prev
	for range evictionSampleSize - 1 {
		if candidate == nil {
			break
		}

		if cost := candidate.evictionCost(); cost < lowest {
			lowest = cost
			victim = candidate
		}

		candidate = candidate.prev
	}

	c.unlink(victim)
	delete(c.entries, victim.key)
	c.currentSize -= victim.size()
}

// compress returns payload as an LZ4 block. Incompressible payloads are
// stored raw, marked by a zero-length block.
func compress(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, lz4.CompressBlockBound(len(payload)))

	written, err := lz4.CompressBlock(payload, buf, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: compress: %w", err)
	}

	if written == 0 {
		return append([]byte{0}, payload...), nil
	}

	return append([]byte{1}, buf[:written]...), nil
}

func decompress(data []byte, rawSize int) ([]byte, error) {
	if rawSize == 0 {
		return []byte{}, nil
	}

	if len(data) == 0 {
		return nil, errCorruptEntry
	}

	if data[0] == 0 {
		return append([]byte(nil), data[1:]...), nil
	}

	out := make([]byte, rawSize)

	n, err := lz4.UncompressBlock(data[1:], out)
	if err != nil {
		return nil, fmt.Errorf("cache: decompress: %w", err)
	}

	if n != rawSize {
		return nil, errCorruptEntry
	}

	return out, nil
}
