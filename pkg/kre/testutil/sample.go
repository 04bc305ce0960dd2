// Package testutil reproduces the database-sampling helpers from
// original_source/src/utils/protocol.rs that spec.md scopes out of THE
// CORE but that every test, benchmark, and the simulate CLI subcommand
// still needs to generate inputs.
package testutil

import (
	"math/rand/v2"
	"sort"
)

// KValue names the three rank targets original_source exposes directly,
// instead of asking callers to compute k by hand.
type KValue int

const (
	KMin KValue = iota
	KMedian
	KMax
)

// ToK resolves a KValue against a total element count n. KMedian returns
// n/2 (integer division) as a 1-indexed rank, the convention
// original_source's n/2 used: for even n that is the lower of the two
// middle elements, and for odd n it is the element just below the median.
func (kv KValue) ToK(n int) int {
	switch kv {
	case KMin:
		return 1
	case KMax:
		return n
	default: // KMedian
		return n / 2
	}
}

// SampleDatabases generates numParties private databases of dbSize
// integers each, drawn uniformly from [lo, hi], mirroring
// sample_databases/sample_database.
func SampleDatabases(numParties, dbSize int, lo, hi int) [][]int {
	dbs := make([][]int, numParties)
	for i := range dbs {
		dbs[i] = SampleDatabase(dbSize, lo, hi)
	}
	return dbs
}

// SampleDatabase generates one sorted database of size integers drawn
// uniformly from [lo, hi].
func SampleDatabase(size int, lo, hi int) []int {
	span := hi - lo + 1
	db := make([]int, size)
	for i := range db {
		db[i] = lo + rand.IntN(span)
	}
	sort.Ints(db)
	return db
}

// SampleDBSizes draws numParties database sizes uniformly from
// [minSize, maxSize], mirroring sample_db_sizes.
func SampleDBSizes(numParties, minSize, maxSize int) []int {
	span := maxSize - minSize + 1
	sizes := make([]int, numParties)
	for i := range sizes {
		sizes[i] = minSize + rand.IntN(span)
	}
	return sizes
}

// GetDBSizes returns the length of every database in dbs, mirroring
// get_db_sizes.
func GetDBSizes(dbs [][]int) []int {
	sizes := make([]int, len(dbs))
	for i, db := range dbs {
		sizes[i] = len(db)
	}
	return sizes
}

// KthElement returns the k-th ranked (1-indexed) element of the sorted
// union of dbs, the ground truth used to check protocol runs against.
func KthElement(dbs [][]int, k int) int {
	var union []int
	for _, db := range dbs {
		union = append(union, db...)
	}
	sort.Ints(union)
	return union[k-1]
}
