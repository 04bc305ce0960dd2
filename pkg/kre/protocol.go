package kre

import (
	"github.com/luxfi/kre/pkg/paillier"
)

// NewProtocol is the convenience constructor used by tests, benchmarks, and
// cmd/kre-cli's simulate subcommand: it generates a fresh Paillier key
// pair, derives one independent RNG stream per party via HKDF, and returns
// a ready-to-run coordinator and party slice for RunLocal.
func NewProtocol(dbs [][]int, k int, bits int) (*Coordinator, []Party, error) {
	return newProtocol(dbs, k, bits, NoiseNone, ScaleFixed)
}

// NewDPProtocol is NewProtocol with every party wrapped in a DP decorator.
func NewDPProtocol(dbs [][]int, k int, bits int, level NoiseLevel, scaleFn ScaleFunc) (*Coordinator, []Party, error) {
	return newProtocol(dbs, k, bits, level, scaleFn)
}

// NewSingleParty builds the degenerate n=1 case directly from one
// database, reproducing original_source's create_single_party convenience.
func NewSingleParty(db []int, k int, bits int) (*Coordinator, Party, error) {
	coordinator, parties, err := NewProtocol([][]int{db}, k, bits)
	if err != nil {
		return nil, nil, err
	}
	return coordinator, parties[0], nil
}

func newProtocol(dbs [][]int, k int, bits int, level NoiseLevel, scaleFn ScaleFunc) (*Coordinator, []Party, error) {
	if len(dbs) == 0 {
		return nil, nil, &InputInvalid{Reason: "at least one party database is required"}
	}

	n := len(dbs)
	totalN := 0
	globalMin, globalMax := 0, 0
	first := true
	for _, db := range dbs {
		totalN += len(db)
		for _, x := range db {
			if first {
				globalMin, globalMax = x, x
				first = false
				continue
			}
			if x < globalMin {
				globalMin = x
			}
			if x > globalMax {
				globalMax = x
			}
		}
	}
	if first {
		return nil, nil, &InputInvalid{Reason: "every party database is empty"}
	}

	pk, shares, err := paillier.GenerateKeyPair(bits, n, n)
	if err != nil {
		return nil, nil, wrapCrypto(err, "generating paillier key pair")
	}

	coordinator, err := NewCoordinator(n, k, totalN, pk)
	if err != nil {
		return nil, nil, err
	}

	parties := make([]Party, n)
	for i, db := range dbs {
		seed, err := newMasterSeed()
		if err != nil {
			return nil, nil, err
		}
		rng, err := derivePartyRNG(seed, i)
		if err != nil {
			return nil, nil, err
		}

		base, err := NewParty(db, i, n, k, totalN, globalMin, globalMax, pk, shares[i], rng)
		if err != nil {
			return nil, nil, err
		}

		if level == NoiseNone {
			parties[i] = base
			continue
		}

		noiseSeed, err := newMasterSeed()
		if err != nil {
			return nil, nil, err
		}
		noiseRNG, err := derivePartyRNG(noiseSeed, i)
		if err != nil {
			return nil, nil, err
		}
		parties[i] = NewDPParty(base, level, scaleFn, noiseRNG)
	}

	return coordinator, parties, nil
}
