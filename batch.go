package nghs

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// BatchInsert applies a set of (key, level) pairs in parallel, growing
// capacity first if needed, and republishes a consistent navigation tree
// before returning. level must be in [1, 32]; a second insert at the
// current batch of level 1 while the roommate is already occupied is a
// fatal contract violation (see errors.go). Duplicate keys within a single
// batch are caller error.
func (t *Table) BatchInsert(pairs []KeyLevel) {
	if len(pairs) == 0 {
		return
	}
	t.ensureCapacity(uint32(len(pairs)))

	t.scheduler.ParallelFor(0, len(pairs), func(i int) {
		key, level := pairs[i].Key, pairs[i].Level
		if level == 1 {
			t.insertRoommate(key)
			// Repair protocol: a key previously at level >= 2 is promoted
			// to level 1. The removal uses the unchecked path, since the
			// key may never have existed in the main table at all.
			if removed, oldLevel := t.removeChecked(key, false); removed {
				t.levelCounts[oldLevel].Add(^uint32(0))
			}
			t.levelCounts[1].Store(1)
			return
		}
		t.insertMain(key, level)
		t.levelCounts[level].Add(1)
	})

	t.tree.rebuild(t.scheduler, t.entries)
}

// BatchUpdate changes the level of every (key, newLevel) pair in parallel.
// Every key must already exist (as a main-table entry or as the
// roommate); updating the roommate's own key is defined as a no-op. A key
// that does not exist is a fatal contract violation.
func (t *Table) BatchUpdate(pairs []KeyLevel) {
	if len(pairs) == 0 {
		return
	}
	t.scheduler.ParallelFor(0, len(pairs), func(i int) {
		t.updateOne(pairs[i].Key, pairs[i].Level)
	})
	t.tree.rebuild(t.scheduler, t.entries)
}

func (t *Table) updateOne(key, newLevel uint32) {
	if key == t.roommate.Load() {
		return // updating the roommate's own key is a no-op
	}
	idx, ok := t.probeIndex(key)
	if !ok {
		fatalf(t.logger, "update of missing key", zap.Uint32("key", key))
		return
	}
	_, oldLevel := t.entries[idx].load()
	t.levelCounts[oldLevel].Add(^uint32(0))

	if newLevel == 1 {
		t.insertRoommate(key)
		t.entries[idx].word.Store(deletedSlotWord())
		t.used.Add(^uint32(0))
		t.tree.markDirty(int(idx))
		t.levelCounts[1].Store(1)
		return
	}

	// Plain store rather than a CAS: batch update runs within a write epoch
	// where no other mutator touches this key.
	t.entries[idx].word.Store(packSlot(key, newLevel))
	t.tree.markDirty(int(idx))
	t.levelCounts[newLevel].Add(1)
}

// BatchDelete removes every key in parallel; each key must exist (in the
// main table or as the roommate) or the operation is a fatal contract
// violation.
func (t *Table) BatchDelete(keys []uint32) {
	if len(keys) == 0 {
		return
	}
	t.scheduler.ParallelFor(0, len(keys), func(i int) {
		key := keys[i]
		if key == t.roommate.Load() && t.roommate.CompareAndSwap(key, reservedKey) {
			t.levelCounts[1].Store(0)
			return
		}
		if removed, level := t.removeChecked(key, true); removed {
			t.levelCounts[level].Add(^uint32(0))
		}
	})
	t.tree.rebuild(t.scheduler, t.entries)
}

// BatchFind is a pure read: it returns find(key) for every key, in the
// same order as the input, and never rebuilds the tree.
func (t *Table) BatchFind(keys []uint32) []uint32 {
	out := make([]uint32, len(keys))
	t.scheduler.ParallelFor(0, len(keys), func(i int) {
		out[i] = t.find(keys[i])
	})
	return out
}

// Find returns the level of key, or 0 if key is not present.
func (t *Table) Find(key uint32) uint32 {
	return t.find(key)
}

// Fetch returns up to k keys whose level equals level, drawn from the live
// set. For level == 1 the result is the roommate if present, else empty.
// For level in [2,32], k is clamped to the exact live count L[level]
// before the result slice is allocated, so the result's length is never
// further truncated after allocation. Fetch must not be called while a
// batch operation is in flight: it relies on the navigation tree being in
// its rebuilt, non-dirty state.
func (t *Table) Fetch(k uint32, level uint32) []uint32 {
	if k == 0 {
		return []uint32{}
	}
	if level == 1 {
		if rm := t.roommate.Load(); rm != reservedKey {
			return []uint32{rm}
		}
		return []uint32{}
	}
	if level < minLevel || level > maxLevel {
		return []uint32{}
	}

	exact := t.levelCounts[level].Load()
	if k > exact {
		k = exact
	}
	out := make([]uint32, k)
	if k == 0 {
		return out
	}

	var cursor atomic.Uint32
	t.fetchNode(0, level, &cursor, out)
	return out
}

func (t *Table) fetchNode(i int, level uint32, cursor *atomic.Uint32, out []uint32) {
	if !t.tree.hasLevel(i, level) {
		return
	}
	if cursor.Load() >= uint32(len(out)) {
		return
	}
	if t.tree.isLeaf(i) {
		bucket := i - (t.tree.leaves - 1)
		start := bucket * int(t.bucketSize)
		end := start + int(t.bucketSize)
		if end > len(t.entries) {
			end = len(t.entries)
		}
		for j := start; j < end; j++ {
			key, lvl := t.entries[j].load()
			if lvl != level {
				continue
			}
			slot := cursor.Add(1) - 1
			if slot >= uint32(len(out)) {
				return
			}
			out[slot] = key
		}
		return
	}
	left, right := t.tree.children(i)
	t.scheduler.ParDo(
		func() { t.fetchNode(left, level, cursor, out) },
		func() { t.fetchNode(right, level, cursor, out) },
	)
}
