package kre

import (
	"io"
	"sort"

	"github.com/luxfi/kre/pkg/paillier"
)

// Party is the capability set a protocol driver needs from a party client:
// local computation, share decryption, and applying a verdict to local
// state. dpParty implements the same interface by embedding one, which is
// the decorator shape spec'd in place of deep inheritance: RawCounts and
// Encrypt are split out of LocalComputation specifically so dpParty can
// intercept the plaintext counts and inject noise between them.
type Party interface {
	RawCounts() (less, greater, effectiveSize int, err error)
	Encrypt(less, greater int) (lt, gt *paillier.Ciphertext, err error)
	LocalComputation() (lt, gt *paillier.Ciphertext, err error)
	ComputeShares(sumLT, sumGT *paillier.Ciphertext) (ltShare, gtShare *paillier.PartialDecryption, err error)
	Update(v Verdict) (value int, found bool)
	Midpoint() int
	DBSize() int
	RoundCap() int
}

// partyState is the non-DP party client. It owns one sorted private
// database, the current search range, and its key share.
type partyState struct {
	db    []int
	index int
	n     int
	k     int
	N     int

	a, b   int
	lo, hi int
	m      int

	greaterThanMIdx *int

	roundCap int

	sk  *paillier.PrivateKeyShare
	pk  *paillier.PublicKey
	rng io.Reader
}

// NewParty constructs a party client over db (sorted ascending internally;
// the caller's slice is not mutated). index identifies this party among n
// total parties; k is the rank target and N the sum of every party's
// database size; [globalMin, globalMax] is the initial search range shared
// by every party.
func NewParty(db []int, index, n, k, totalN, globalMin, globalMax int, pk *paillier.PublicKey, sk *paillier.PrivateKeyShare, rng io.Reader) (*partyState, error) {
	if k < 1 || k > totalN {
		return nil, &InputInvalid{Reason: "k must satisfy 1 <= k <= N"}
	}
	if globalMin > globalMax {
		return nil, &InputInvalid{Reason: "globalMin must not exceed globalMax"}
	}

	sorted := make([]int, len(db))
	copy(sorted, db)
	sort.Ints(sorted)

	return &partyState{
		db:    sorted,
		index: index,
		n:     n,
		k:     k,
		N:     totalN,
		a:     globalMin,
		b:     globalMax,
		lo:    0,
		hi:    len(sorted),
		m:        floorMidpoint(globalMin, globalMax),
		roundCap: roundCap(globalMin, globalMax),
		sk:       sk,
		pk:       pk,
		rng:      rng,
	}, nil
}

// floorMidpoint computes floor((a+b)/2). Go's >> on signed integers is an
// arithmetic (sign-extending) shift, so this rounds towards negative
// infinity exactly like the spec requires, unlike plain integer division
// which truncates towards zero.
func floorMidpoint(a, b int) int {
	return (a + b) >> 1
}

// roundCapSlack is the small constant C added to the non-DP termination
// bound to tolerate DP-induced range oscillation before the driver gives
// up and aborts.
const roundCapSlack = 4

// roundCap computes ceil(log2(b-a+1)) + roundCapSlack, the bound
// implementations must cap rounds at (spec.md §4.6).
func roundCap(a, b int) int {
	span := b - a + 1
	if span < 1 {
		span = 1
	}
	bits := 0
	for (1 << bits) < span {
		bits++
	}
	return bits + roundCapSlack
}

func (p *partyState) RoundCap() int { return p.roundCap }

func (p *partyState) Midpoint() int { return p.m }

// usesSubRange reports whether the lo..hi optimization applies: valid only
// for extreme-rank queries (k == 1 or k == N), where the count over the
// sub-range equals the count over the full database. For any other k this
// optimization would silently change the semantics, so it must not be used.
func (p *partyState) usesSubRange() bool {
	return p.k == 1 || p.k == p.N
}

// RawCounts recomputes the midpoint and returns the unencrypted (less,
// greater) counts plus the effective database size D* the DP wrapper scales
// noise against. Plain parties encrypt these counts as-is; dpParty
// perturbs them first.
func (p *partyState) RawCounts() (less, greater, effectiveSize int, err error) {
	p.m = floorMidpoint(p.a, p.b)

	var firstGreaterIdx *int

	if p.usesSubRange() {
		for i := p.lo; i < p.hi; i++ {
			x := p.db[i]
			switch {
			case x < p.m:
				less++
			case x > p.m:
				greater++
				if firstGreaterIdx == nil {
					idx := i
					firstGreaterIdx = &idx
				}
			}
		}
		effectiveSize = p.hi - p.lo
		if effectiveSize < 1 {
			effectiveSize = 1
		}
	} else {
		for i, x := range p.db {
			switch {
			case x < p.m:
				less++
			case x > p.m:
				greater++
				if firstGreaterIdx == nil {
					idx := i
					firstGreaterIdx = &idx
				}
			}
		}
		effectiveSize = len(p.db)
	}
	p.greaterThanMIdx = firstGreaterIdx

	return less, greater, effectiveSize, nil
}

// Encrypt encrypts a (less, greater) pair under the party's public key and
// private randomness stream.
func (p *partyState) Encrypt(less, greater int) (lt, gt *paillier.Ciphertext, err error) {
	lt, err = p.pk.Encrypt(int64(less), p.rng)
	if err != nil {
		return nil, nil, wrapCrypto(err, "encrypting less-than count")
	}
	gt, err = p.pk.Encrypt(int64(greater), p.rng)
	if err != nil {
		return nil, nil, wrapCrypto(err, "encrypting greater-than count")
	}
	return lt, gt, nil
}

func (p *partyState) LocalComputation() (lt, gt *paillier.Ciphertext, err error) {
	less, greater, _, err := p.RawCounts()
	if err != nil {
		return nil, nil, err
	}
	return p.Encrypt(less, greater)
}

func (p *partyState) DBSize() int { return len(p.db) }

func (p *partyState) ComputeShares(sumLT, sumGT *paillier.Ciphertext) (ltShare, gtShare *paillier.PartialDecryption, err error) {
	ltShare = p.sk.PartialDecrypt(p.pk, sumLT)
	gtShare = p.sk.PartialDecrypt(p.pk, sumGT)
	return ltShare, gtShare, nil
}

func (p *partyState) Update(v Verdict) (value int, found bool) {
	switch v {
	case VerdictFoundK:
		return p.m, true
	case VerdictSearchBelow:
		p.b = p.m - 1
		if p.greaterThanMIdx != nil {
			p.hi = *p.greaterThanMIdx
		}
		return 0, false
	case VerdictSearchAbove:
		p.a = p.m + 1
		if p.greaterThanMIdx != nil {
			p.lo = *p.greaterThanMIdx
		}
		return 0, false
	default: // VerdictAbort
		return 0, false
	}
}
