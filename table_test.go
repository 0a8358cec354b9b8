package nghs

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// panicOnFatal returns a logger whose Fatal calls panic instead of calling
// os.Exit(1), so tests can assert on the contract-violation paths in
// errors.go without killing the test binary.
func panicOnFatal() *zap.Logger {
	return zap.NewNop().WithOptions(zap.WithFatalHook(zapcore.WriteThenPanic))
}

func newTestTable(t *testing.T, initialCapacity uint32, opts ...Option) *Table {
	t.Helper()
	opts = append([]Option{WithScheduler(InlineScheduler{}), WithLogger(panicOnFatal())}, opts...)
	tbl, err := NewTable(initialCapacity, opts...)
	require.NoError(t, err)
	return tbl
}

func TestNewTableRoundsCapacityToBucketMultiple(t *testing.T) {
	tbl := newTestTable(t, 10, WithBucketSize(8))
	require.Equal(t, uint32(16), tbl.capacity.Load())
}

func TestNewTableOptionValidation(t *testing.T) {
	_, err := NewTable(16, WithBucketSize(0))
	require.Error(t, err)

	_, err = NewTable(16, WithLoadFactor(0))
	require.Error(t, err)
	_, err = NewTable(16, WithLoadFactor(1.5))
	require.Error(t, err)

	_, err = NewTable(16, WithExpandFactor(1))
	require.Error(t, err)

	_, err = NewTable(16, WithHasher(nil))
	require.Error(t, err)
	_, err = NewTable(16, WithScheduler(nil))
	require.Error(t, err)
	_, err = NewTable(16, WithLogger(nil))
	require.Error(t, err)
}

func TestSizeEmptyTable(t *testing.T) {
	tbl := newTestTable(t, 64, WithBucketSize(16))
	require.Equal(t, uint32(0), tbl.Size())
}

func TestRoommatePromotion(t *testing.T) {
	tbl := newTestTable(t, 64, WithBucketSize(16))

	tbl.BatchInsert([]KeyLevel{{Key: 7, Level: 5}})
	require.Equal(t, uint32(5), tbl.Find(7))
	require.Equal(t, uint32(1), tbl.levelCounts[5].Load())

	tbl.BatchInsert([]KeyLevel{{Key: 7, Level: 1}})
	require.Equal(t, uint32(7), tbl.roommate.Load())
	require.Equal(t, uint32(1), tbl.Find(7))
	require.Equal(t, uint32(0), tbl.levelCounts[5].Load())
	require.Equal(t, uint32(1), tbl.levelCounts[1].Load())

	// The key must no longer be reachable via the main-table probe.
	_, ok := tbl.probeIndex(7)
	require.False(t, ok)
}

func TestDuplicateLevelOneInsertIsFatal(t *testing.T) {
	tbl := newTestTable(t, 64, WithBucketSize(16))
	tbl.BatchInsert([]KeyLevel{{Key: 1, Level: 1}})
	require.Panics(t, func() {
		tbl.BatchInsert([]KeyLevel{{Key: 2, Level: 1}})
	})
}

func TestUpdateOfMissingKeyIsFatal(t *testing.T) {
	tbl := newTestTable(t, 64, WithBucketSize(16))
	require.Panics(t, func() {
		tbl.BatchUpdate([]KeyLevel{{Key: 999, Level: 5}})
	})
}

func TestRemoveOfMissingKeyIsFatal(t *testing.T) {
	tbl := newTestTable(t, 64, WithBucketSize(16))
	require.Panics(t, func() {
		tbl.BatchDelete([]uint32{999})
	})
}

func TestFetchOfZeroAlwaysEmpty(t *testing.T) {
	tbl := newTestTable(t, 128, WithBucketSize(16))
	pairs := make([]KeyLevel, 0, 64)
	for i := uint32(0); i < 64; i++ {
		pairs = append(pairs, KeyLevel{Key: i, Level: (i % 31) + 2})
	}
	tbl.BatchInsert(pairs)
	for level := uint32(1); level <= 32; level++ {
		require.Empty(t, tbl.Fetch(0, level))
	}
}

func TestResizeTriggersAboveLoadFactor(t *testing.T) {
	const b = 8
	tbl := newTestTable(t, 2*b, WithBucketSize(b), WithLoadFactor(0.75))
	// Inserting floor(capacity*0.75) = 12 keys must not trigger a resize.
	firstBatch := make([]KeyLevel, 12)
	for i := range firstBatch {
		firstBatch[i] = KeyLevel{Key: uint32(i + 1), Level: 2}
	}
	tbl.BatchInsert(firstBatch)
	require.Equal(t, uint32(16), tbl.capacity.Load(), "capacity should not grow yet")

	// One more key must trigger a resize.
	tbl.BatchInsert([]KeyLevel{{Key: 1000, Level: 3}})
	require.Greater(t, tbl.capacity.Load(), uint32(16))
	require.Equal(t, uint32(13), tbl.Size())

	for _, kl := range firstBatch {
		require.Equal(t, kl.Level, tbl.Find(kl.Key))
	}
	require.Equal(t, uint32(3), tbl.Find(1000))
}

func TestBoundaryLoadFactorAtSingleBucket(t *testing.T) {
	// Boundary behavior: with capacity B, inserting
	// floor(B*0.75) keys must not trigger resize; one more must.
	const b = 8
	tbl := newTestTable(t, b, WithBucketSize(b), WithLoadFactor(0.75))
	require.Equal(t, uint32(b), tbl.capacity.Load())

	first := make([]KeyLevel, 6) // floor(8*0.75) == 6
	for i := range first {
		first[i] = KeyLevel{Key: uint32(i + 1), Level: 2}
	}
	tbl.BatchInsert(first)
	require.Equal(t, uint32(b), tbl.capacity.Load(), "must not resize yet")

	tbl.BatchInsert([]KeyLevel{{Key: 100, Level: 2}})
	require.Greater(t, tbl.capacity.Load(), uint32(b), "one more insert must trigger resize")
	require.Equal(t, uint32(7), tbl.Size())
	for _, kl := range first {
		require.Equal(t, kl.Level, tbl.Find(kl.Key))
	}
	require.Equal(t, uint32(2), tbl.Find(100))
}

func TestResizeUnderLoadScenario(t *testing.T) {
	// Resize-under-load scenario: B=8, initial capacity 2*B, insert 10*B keys in
	// a single batch.
	const b = 8
	tbl := newTestTable(t, 2*b, WithBucketSize(b))
	pairs := make([]KeyLevel, 10*b)
	for i := range pairs {
		pairs[i] = KeyLevel{Key: uint32(i + 1), Level: ((uint32(i) % 31) + 2)}
	}
	tbl.BatchInsert(pairs)

	minCapacity := uint32(float64(10*b)/0.75) / b * b
	if uint32(float64(10*b)/0.75)%b != 0 {
		minCapacity += b
	}
	require.GreaterOrEqual(t, tbl.capacity.Load(), minCapacity)
	require.Equal(t, 2*int(tbl.capacity.Load()/b)-1, len(tbl.tree.words))

	for _, kl := range pairs {
		require.Equal(t, kl.Level, tbl.Find(kl.Key))
	}
	require.Equal(t, uint32(len(pairs)), tbl.Size())
}

func TestResizePreservesRoommateLevelCount(t *testing.T) {
	const b = 8
	tbl := newTestTable(t, 2*b, WithBucketSize(b))

	tbl.BatchInsert([]KeyLevel{{Key: 42, Level: 1}})
	require.Equal(t, uint32(1), tbl.levelCounts[1].Load())

	// A growth-triggering batch must not zero levelCounts[1]: the roommate
	// is a separate scalar that survives resize untouched.
	grow := make([]KeyLevel, 10*b)
	for i := range grow {
		grow[i] = KeyLevel{Key: uint32(1000 + i), Level: 2}
	}
	tbl.BatchInsert(grow)

	require.Greater(t, tbl.capacity.Load(), uint32(2*b))
	require.Equal(t, uint32(42), tbl.roommate.Load())
	require.Equal(t, uint32(1), tbl.levelCounts[1].Load())
	require.Equal(t, uint32(1), tbl.Find(42))
}

func TestInsertOfRoommateKeyIntoMainIsFatal(t *testing.T) {
	tbl := newTestTable(t, 64, WithBucketSize(16))
	tbl.BatchInsert([]KeyLevel{{Key: 7, Level: 1}})
	require.Equal(t, uint32(7), tbl.roommate.Load())

	require.Panics(t, func() {
		tbl.BatchInsert([]KeyLevel{{Key: 7, Level: 5}})
	})
}
