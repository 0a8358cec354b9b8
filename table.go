package nghs

import (
	"math"
	"sort"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Table is the façade over the entry store and navigation tree: batch
// insertion, batch update, batch deletion, batch find, level-selective
// fetch, and size. It owns capacity growth, the 33 per-level atomic
// counters (index 0 unused, index 1 tracks roommate presence), and
// orchestrates the navigation tree's rebuild phase.
//
// A Table is neither copyable nor movable in spirit: copying a Table value
// would duplicate the atomic slot store without duplicating what it
// protects. Always hold a *Table.
type Table struct {
	bucketSize   uint32
	loadFactor   float64
	expandFactor float64
	hasher       Hasher32
	scheduler    Scheduler
	logger       *zap.Logger

	entries []slot
	tree    *navTree

	capacity    atomic.Uint32
	used        atomic.Uint32
	roommate    atomic.Uint32
	levelCounts [maxLevel + 1]atomic.Uint32
	resizeCount atomic.Uint64
}

// NewTable constructs a Table with capacity rounded up to the next
// multiple of the bucket size B (16 by default; see WithBucketSize).
func NewTable(initialCapacity uint32, opts ...Option) (*Table, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	cap := roundUpToMultiple(initialCapacity, cfg.bucketSize)
	if cap == 0 {
		cap = cfg.bucketSize
	}

	t := &Table{
		bucketSize:   cfg.bucketSize,
		loadFactor:   cfg.loadFactor,
		expandFactor: cfg.expandFactor,
		hasher:       cfg.hasher,
		scheduler:    cfg.scheduler,
		logger:       cfg.logger,
		entries:      make([]slot, cap),
		tree:         newNavTree(cap, cfg.bucketSize),
	}
	for i := range t.entries {
		t.entries[i].reset()
	}
	t.capacity.Store(cap)
	t.roommate.Store(reservedKey)
	return t, nil
}

func roundUpToMultiple(n, b uint32) uint32 {
	if b == 0 {
		return n
	}
	if n%b == 0 {
		return n
	}
	return (n/b + 1) * b
}

// Size returns the number of live entries, including the roommate if
// present.
func (t *Table) Size() uint32 {
	size := t.used.Load()
	if t.roommate.Load() != reservedKey {
		size++
	}
	return size
}

// Collector exposes the table's per-level counters and capacity/used
// gauges as a prometheus.Collector for host processes that already scrape
// metrics.
func (t *Table) Collector() prometheus.Collector {
	return newTableCollector(t)
}

func (t *Table) firstIndex(key uint32) uint32 {
	return t.hasher.Hash32(key) % t.capacity.Load()
}

func (t *Table) incrementIndex(i uint32) uint32 {
	cap := t.capacity.Load()
	if i+1 == cap {
		return 0
	}
	return i + 1
}

// find returns the level of key (0 if absent), checking the roommate
// first: the roommate is not in the probe sequence at all.
func (t *Table) find(key uint32) uint32 {
	if key == t.roommate.Load() {
		return 1
	}
	i := t.firstIndex(key)
	start := i
	for {
		k, lvl := t.entries[i].load()
		if k == reservedKey && lvl == 0 {
			return 0 // empty: find cannot stop at deleted, but empty ends the chain
		}
		if k == key {
			return lvl
		}
		i = t.incrementIndex(i)
		if i == start {
			return 0
		}
	}
}

// insertMain places (key, level) into the first empty-or-deleted slot
// along the probe sequence from hash(key) mod capacity. level must be in
// [minLevel, maxLevel]. key must not be the current roommate — inserting
// the roommate's key into the main table would create an unreachable
// ghost entry, since find/probeIndex always check the roommate first; that
// is a fatal contract violation. A full table (probe wraps back to its
// start without landing on an insertable slot) is likewise fatal — callers
// must keep the load factor at or below loadFactor.
func (t *Table) insertMain(key, level uint32) {
	if key == t.roommate.Load() {
		fatalf(t.logger, "insert of roommate key into main table", zap.Uint32("key", key))
		return
	}
	i := t.firstIndex(key)
	start := i
	item := packSlot(key, level)
	for {
		old := t.entries[i].word.Load()
		oldKey, oldLevel := unpackSlot(old)
		if oldKey == key {
			// Slot already holds this key (a duplicate key within the same
			// batch, which is caller error): overwrite it here instead of
			// landing in a second, now-duplicated slot. used is unchanged,
			// and the level counter of the overwritten level is not
			// decremented.
			if t.entries[i].casFrom(old, item) {
				return
			}
			continue
		}
		if oldKey == reservedKey && (oldLevel == 0 || oldLevel == 1) {
			if t.entries[i].casFrom(old, item) {
				t.used.Add(1)
				t.tree.markDirty(int(i))
				return
			}
			continue
		}
		i = t.incrementIndex(i)
		if i == start {
			fatalf(t.logger, "hash table is full", zap.Uint32("key", key))
			return
		}
	}
}

// insertRoommate claims the single level-1 slot via CAS. A second level-1
// insert while the roommate is occupied is a fatal contract violation.
func (t *Table) insertRoommate(key uint32) {
	if !t.roommate.CompareAndSwap(reservedKey, key) {
		fatalf(t.logger, "repeat inserting level 1 edge", zap.Uint32("key", key))
		return
	}
}

// removeChecked walks the probe sequence for key and marks the matching
// slot deleted. If check is true and the key is not present, removal of a
// non-existent key is a fatal contract violation; if check is false (the
// roommate-promotion path), a missing key is silently treated as a no-op.
func (t *Table) removeChecked(key uint32, check bool) (removed bool, level uint32) {
	i := t.firstIndex(key)
	start := i
	for {
		k, lvl := t.entries[i].load()
		if k == reservedKey && lvl == 0 {
			break // empty: key is not in the table
		}
		if k == key {
			old := t.entries[i].word.Load()
			if t.entries[i].casFrom(old, deletedSlotWord()) {
				t.used.Add(^uint32(0)) // -1
				t.tree.markDirty(int(i))
				return true, lvl
			}
			continue
		}
		i = t.incrementIndex(i)
		if i == start {
			break
		}
	}
	if check {
		fatalf(t.logger, "remove non-existent item", zap.Uint32("key", key))
	}
	return false, 0
}

// probeIndex walks the probe sequence for key and returns the index of its
// slot in the main table, if present. It never consults the roommate.
func (t *Table) probeIndex(key uint32) (idx uint32, ok bool) {
	i := t.firstIndex(key)
	start := i
	for {
		k, lvl := t.entries[i].load()
		if k == reservedKey && lvl == 0 {
			return 0, false
		}
		if k == key {
			return i, true
		}
		i = t.incrementIndex(i)
		if i == start {
			return 0, false
		}
	}
}

// ensureCapacity grows the table if a batch of size n would push the load
// factor above the configured threshold. New capacity is
// max(ceil((used+n)/loadFactor), capacity*expandFactor) rounded up to a
// multiple of B. Every
// live entry is re-inserted into the fresh buffers in parallel; the
// navigation tree is rebuilt from scratch afterward. Not safe to call
// concurrently with any other operation — it is only ever invoked from
// BatchInsert, which owns the write epoch.
func (t *Table) ensureCapacity(n uint32) {
	cap := t.capacity.Load()
	used := t.used.Load()
	if float64(cap)*t.loadFactor >= float64(used+n) {
		return
	}

	// The source's literal growth formula, max(used+n, capacity*expandFactor)
	// rounded to a multiple of B, can undershoot its own load-factor
	// invariant (e.g. capacity=16, used=0, n=80 yields 80, but
	// 80*0.75 < 80): dividing the required minimum by loadFactor instead
	// of leaving it bare keeps "capacity * loadFactor >= used" true
	// immediately after every resize, matching the bound a batch of
	// 10*B keys against a starting capacity of 2*B should produce:
	// capacity >= 10*B/0.75 rounded to a multiple of B.
	grown := float64(cap) * t.expandFactor
	required := math.Ceil(float64(used+n) / t.loadFactor)
	newCapF := grown
	if required > newCapF {
		newCapF = required
	}
	newCap := roundUpToMultiple(uint32(newCapF), t.bucketSize)
	if newCap <= cap {
		newCap = roundUpToMultiple(cap+t.bucketSize, t.bucketSize)
	}

	oldEntries := t.entries
	newEntries := make([]slot, newCap)
	for i := range newEntries {
		newEntries[i].reset()
	}

	t.entries = newEntries
	t.tree = newNavTree(newCap, t.bucketSize)
	t.capacity.Store(newCap)
	t.used.Store(0)
	for lvl := range t.levelCounts {
		t.levelCounts[lvl].Store(0)
	}

	t.scheduler.ParallelFor(0, len(oldEntries), func(i int) {
		k, lvl := oldEntries[i].load()
		if k == reservedKey {
			return // empty or deleted: nothing live to carry over
		}
		t.insertMain(k, lvl)
		t.levelCounts[lvl].Add(1)
	})

	// The roommate is a separate scalar untouched by resize; levelCounts[1]
	// tracks its presence and must be re-derived here, not left at the zero
	// the reset loop above just stored.
	if t.roommate.Load() != reservedKey {
		t.levelCounts[1].Store(1)
	}

	t.tree.rebuild(t.scheduler, t.entries)
	t.resizeCount.Add(1)
}

// ToSortedSequence returns every live (key, level) pair, including the
// roommate, sorted by key. It is a debug/testing convenience, not part of
// the hot path: callers needing performance should use Fetch.
func (t *Table) ToSortedSequence() []KeyLevel {
	out := make([]KeyLevel, 0, t.Size())
	if rm := t.roommate.Load(); rm != reservedKey {
		out = append(out, KeyLevel{Key: rm, Level: 1})
	}
	for i := range t.entries {
		k, lvl := t.entries[i].load()
		if k == reservedKey {
			continue
		}
		out = append(out, KeyLevel{Key: k, Level: lvl})
	}
	sortKeyLevels(out)
	return out
}

// KeyLevel is a (key, level) pair, returned by ToSortedSequence and taken
// as input by BatchInsert/BatchUpdate.
type KeyLevel struct {
	Key   uint32
	Level uint32
}

func sortKeyLevels(s []KeyLevel) {
	sort.Slice(s, func(i, j int) bool { return s[i].Key < s[j].Key })
}
