package nghs

import "sync/atomic"

// navTree is the complete binary tree of per-bucket level bitmaps. Leaves
// correspond 1:1 to buckets of B consecutive slots in the entry store; each
// leaf word is the bitwise-OR of 2^(level-1) over the live entries in its
// bucket, and each internal word is the OR of its two children. Bit 0 of
// every word is a dirty flag: buckets never legitimately contain a level-1
// entry (level 1 lives only in the roommate), so bit 0 can never collide
// with a real level bit.
type navTree struct {
	words  []atomic.Uint32
	leaves int
	b      uint32
}

func newNavTree(capacity, b uint32) *navTree {
	leaves := int(capacity / b)
	if leaves < 1 {
		leaves = 1
	}
	return &navTree{
		words:  make([]atomic.Uint32, 2*leaves-1),
		leaves: leaves,
		b:      b,
	}
}

func treeSize(capacity, b uint32) int {
	leaves := capacity / b
	if leaves < 1 {
		leaves = 1
	}
	return int(2*leaves - 1)
}

func (t *navTree) leafIndexForSlot(slotIndex int) int {
	return (t.leaves - 1) + slotIndex/int(t.b)
}

func parentOf(i int) int { return (i - 1) / 2 }

func (t *navTree) isLeaf(i int) bool { return i >= t.leaves-1 }

func (t *navTree) children(i int) (int, int) { return 2*i + 1, 2*i + 2 }

// fetchOr atomically ORs mask into words[i] and returns the value the word
// held before the OR. sync/atomic's Uint32 does not expose Or directly at
// the language/stdlib version this module targets, so the fetch-and-or is
// implemented as a CAS retry loop.
func (t *navTree) fetchOr(i int, mask uint32) uint32 {
	for {
		old := t.words[i].Load()
		if old&mask == mask {
			return old
		}
		if t.words[i].CompareAndSwap(old, old|mask) {
			return old
		}
	}
}

// markDirty marks the leaf that owns slotIndex, and every ancestor up to
// the first ancestor that was already dirty, as dirty. Mutators call this
// after every slot write; it never clears bits, only sets bit 0.
func (t *navTree) markDirty(slotIndex int) {
	leaf := t.leafIndexForSlot(slotIndex)
	if old := t.fetchOr(leaf, 1); old&1 != 0 {
		return
	}
	idx := leaf
	for idx != 0 {
		idx = parentOf(idx)
		if old := t.fetchOr(idx, 1); old&1 != 0 {
			return
		}
	}
}

// recomputeLeaf rebuilds a leaf word from scratch by scanning the B slots
// of its bucket, then stores the clean (bit 0 = 0) result.
func (t *navTree) recomputeLeaf(leafIdx int, entries []slot) {
	bucket := leafIdx - (t.leaves - 1)
	start := bucket * int(t.b)
	var word uint32
	for i := start; i < start+int(t.b) && i < len(entries); i++ {
		_, level := entries[i].load()
		if level >= minLevel && level <= maxLevel {
			word |= 1 << (level - 1)
		}
	}
	t.words[leafIdx].Store(word)
}

// rebuild performs the work-efficient parallel top-down rebuild: clean
// subtrees (bit 0 = 0) are pruned immediately; dirty leaves are recomputed
// from their bucket; dirty internal nodes recurse into both children in
// parallel, then become the OR of the (now clean) children.
func (t *navTree) rebuild(sched Scheduler, entries []slot) {
	t.rebuildNode(0, sched, entries)
}

func (t *navTree) rebuildNode(i int, sched Scheduler, entries []slot) {
	if t.words[i].Load()&1 == 0 {
		return
	}
	if t.isLeaf(i) {
		t.recomputeLeaf(i, entries)
		return
	}
	left, right := t.children(i)
	sched.ParDo(
		func() { t.rebuildNode(left, sched, entries) },
		func() { t.rebuildNode(right, sched, entries) },
	)
	t.words[i].Store(t.words[left].Load() | t.words[right].Load())
}

// hasLevel reports whether node i's word has bit (level-1) set.
func (t *navTree) hasLevel(i int, level uint32) bool {
	return t.words[i].Load()&(1<<(level-1)) != 0
}
