// Package nghs implements a concurrent, bucketed open-addressing hash table
// augmented with a level-indexed navigation tree, specialized for adjacency
// storage in parallel graph algorithms.
//
// Every entry binds a 32-bit neighbor key to an integer level in [1, 32].
// Beyond lookup/insert/delete, the table answers bulk level-selective
// queries ("return up to k neighbors at level ℓ") in time proportional to
// the number of buckets that can hold such a neighbor, not to the table's
// capacity, by rolling a per-bucket level bitmap up a complete binary tree.
//
// The table is not safe for concurrent batches: each public Batch* call is
// a single write epoch. Within an epoch, per-key work runs in parallel.
// Between epochs, Find/BatchFind/Fetch may run concurrently with each other.
package nghs
