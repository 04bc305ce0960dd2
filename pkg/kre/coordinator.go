package kre

import (
	"github.com/luxfi/kre/pkg/paillier"
	"golang.org/x/sync/errgroup"
)

// Coordinator holds only public key material and round-local buffers; it
// never sees a party's database or key share. Its fields are fixed at
// construction and never mutated afterwards.
type Coordinator struct {
	n int
	k int
	N int
	pk *paillier.PublicKey
}

// NewCoordinator constructs a coordinator for n parties, rank target k, and
// total database size N under the shared public key pk.
func NewCoordinator(n, k, totalN int, pk *paillier.PublicKey) (*Coordinator, error) {
	if k < 1 || k > totalN {
		return nil, &InputInvalid{Reason: "k must satisfy 1 <= k <= N"}
	}
	if n < 1 {
		return nil, &InputInvalid{Reason: "n must be at least 1"}
	}
	return &Coordinator{n: n, k: k, N: totalN, pk: pk}, nil
}

// Aggregate homomorphically sums every party's LT ciphertexts and, in
// parallel, every party's GT ciphertexts. The two sides are independent, so
// they run concurrently via errgroup exactly as the teacher fans out
// data-parallel per-party work.
func (c *Coordinator) Aggregate(lts, gts []*paillier.Ciphertext) (sumLT, sumGT *paillier.Ciphertext, err error) {
	var g errgroup.Group

	g.Go(func() error {
		sumLT = c.pk.Identity()
		for _, ct := range lts {
			sumLT = c.pk.Add(sumLT, ct)
		}
		return nil
	})
	g.Go(func() error {
		sumGT = c.pk.Identity()
		for _, ct := range gts {
			sumGT = c.pk.Add(sumGT, ct)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return sumLT, sumGT, nil
}

// Combine threshold-decrypts both aggregates in parallel via the crypto
// capability.
func (c *Coordinator) Combine(ltShares, gtShares []*paillier.PartialDecryption) (sumLT, sumGT int, err error) {
	var g errgroup.Group
	var ltPlain, gtPlain paillier.Plaintext

	g.Go(func() error {
		p, err := c.pk.Combine(ltShares)
		if err != nil {
			return wrapCrypto(err, "combining less-than shares")
		}
		ltPlain = p
		return nil
	})
	g.Go(func() error {
		p, err := c.pk.Combine(gtShares)
		if err != nil {
			return wrapCrypto(err, "combining greater-than shares")
		}
		gtPlain = p
		return nil
	})

	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	return int(ltPlain), int(gtPlain), nil
}

// Verdict implements spec.md §4.4's decision table. The branch order is
// load-bearing: SearchBelow is checked before SearchAbove so that, when DP
// noise makes both predicates true, the protocol shrinks from the high
// side. Implementations must not reorder these branches.
func (c *Coordinator) Verdict(sumLT, sumGT int) Verdict {
	if sumLT > c.N || sumGT > c.N {
		return VerdictAbort
	}
	if sumLT >= c.k {
		return VerdictSearchBelow
	}
	if sumGT > c.N-c.k {
		return VerdictSearchAbove
	}
	return VerdictFoundK
}
