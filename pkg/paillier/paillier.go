// Package paillier implements the threshold additively-homomorphic
// cryptosystem consumed as an opaque capability by pkg/kre. It is the
// cryptographic engine behind the k-th ranked element protocol: parties
// encrypt local counts under one shared public key, the coordinator sums
// ciphertexts without ever decrypting them, and only a threshold
// combination of every party's private-key share can open the sum.
//
// The scheme is textbook Paillier (n = p*q, g = n+1) with the decryption
// exponent lambda additively split across all n parties: threshold is
// always n in this system, so combining simply multiplies every partial
// decryption together rather than performing Lagrange interpolation.
package paillier

import (
	"crypto/rand"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/pkg/errors"
)

// PublicKey is the shared encryption key. It is safe to hold by value and
// to pass to every party; only the lambda shares held in PrivateKeyShare
// are secret.
type PublicKey struct {
	N        *saferith.Nat
	NSquared *saferith.Nat
	G        *saferith.Nat

	// mu = lambda^-1 mod n. Needed only to finish a threshold decryption
	// once all partial decryptions have been combined; kept unexported so
	// that holding a PublicKey value alone does not leak decryption power
	// beyond what Combine already requires of its caller.
	mu *saferith.Nat
}

// PrivateKeyShare is one party's additive share of the decryption exponent.
type PrivateKeyShare struct {
	Index int
	Share *saferith.Nat
}

// Ciphertext is an element of Z*_{n^2}.
type Ciphertext struct {
	C *saferith.Nat
}

// PartialDecryption is one party's contribution towards opening a
// Ciphertext; worthless alone, combinable with the other n-1 shares.
type PartialDecryption struct {
	Index int
	Value *saferith.Nat
}

// Plaintext is a decrypted, combined aggregate. The protocol only ever
// encrypts small non-negative counts, so int64 is large enough.
type Plaintext int64

// GenerateKeyPair creates a fresh Paillier key pair of the given bit
// length and splits the decryption exponent additively across n shares.
// threshold must equal n: this system requires every party to
// participate in decryption (spec: "threshold = n in this system").
func GenerateKeyPair(bits int, n, threshold int) (*PublicKey, []*PrivateKeyShare, error) {
	if threshold != n {
		return nil, nil, errors.Errorf("paillier: threshold must equal n (got threshold=%d, n=%d)", threshold, n)
	}
	if n < 1 {
		return nil, nil, errors.New("paillier: n must be at least 1")
	}

	p, err := rand.Prime(rand.Reader, bits/2)
	if err != nil {
		return nil, nil, errors.Wrap(err, "paillier: generating p")
	}
	q, err := rand.Prime(rand.Reader, bits/2)
	if err != nil {
		return nil, nil, errors.Wrap(err, "paillier: generating q")
	}
	for p.Cmp(q) == 0 {
		q, err = rand.Prime(rand.Reader, bits/2)
		if err != nil {
			return nil, nil, errors.Wrap(err, "paillier: regenerating q")
		}
	}

	nBig := new(big.Int).Mul(p, q)
	nSquared := new(big.Int).Mul(nBig, nBig)
	g := new(big.Int).Add(nBig, big.NewInt(1))

	pMinus1 := new(big.Int).Sub(p, big.NewInt(1))
	qMinus1 := new(big.Int).Sub(q, big.NewInt(1))
	gcd := new(big.Int).GCD(nil, nil, pMinus1, qMinus1)
	lambda := new(big.Int).Div(new(big.Int).Mul(pMinus1, qMinus1), gcd)

	mu := new(big.Int).ModInverse(lambda, nBig)
	if mu == nil {
		return nil, nil, errors.New("paillier: lambda not invertible mod n, regenerate key pair")
	}

	pk := &PublicKey{
		N:        natFromBig(nBig),
		NSquared: natFromBig(nSquared),
		G:        natFromBig(g),
		mu:       natFromBig(mu),
	}

	shares, err := splitLambda(lambda, nBig, n)
	if err != nil {
		return nil, nil, err
	}

	keyShares := make([]*PrivateKeyShare, n)
	for i, s := range shares {
		keyShares[i] = &PrivateKeyShare{Index: i, Share: natFromBig(s)}
	}

	return pk, keyShares, nil
}

// splitLambda picks n-1 uniformly random additive terms modulo M = n*lambda
// and sets the last term so that the sum is congruent to lambda mod M. Since
// every ciphertext lies in a group whose order divides M, raising it to the
// sum of the shares (reduced mod M) is identical to raising it to lambda
// directly, which is exactly what partial decryption + combine computes.
func splitLambda(lambda, n *big.Int, parties int) ([]*big.Int, error) {
	m := new(big.Int).Mul(n, lambda)
	shares := make([]*big.Int, parties)
	sum := new(big.Int)
	for i := 0; i < parties-1; i++ {
		s, err := rand.Int(rand.Reader, m)
		if err != nil {
			return nil, errors.Wrap(err, "paillier: sampling lambda share")
		}
		shares[i] = s
		sum.Add(sum, s)
	}
	last := new(big.Int).Sub(lambda, sum)
	last.Mod(last, m)
	shares[parties-1] = last
	return shares, nil
}

// Identity returns the encryption of 0, the identity element for Add.
func (pk *PublicKey) Identity() *Ciphertext {
	return &Ciphertext{C: natUint64(1)}
}

// Encrypt encrypts a non-negative plaintext count under pk, drawing fresh
// randomness from rng. Each party must supply its own rng (see pkg/kre's
// per-party RNG stream) so that encryption randomness is never shared
// across parties.
func (pk *PublicKey) Encrypt(plaintext int64, rng interface {
	Read(p []byte) (n int, err error)
}) (*Ciphertext, error) {
	if plaintext < 0 {
		return nil, errors.Errorf("paillier: cannot encrypt negative plaintext %d", plaintext)
	}

	nBig := bigFromNat(pk.N)
	r, err := rand.Int(rng, nBig)
	if err != nil {
		return nil, errors.Wrap(err, "paillier: sampling encryption randomness")
	}
	for r.Sign() == 0 {
		r, err = rand.Int(rng, nBig)
		if err != nil {
			return nil, errors.Wrap(err, "paillier: resampling encryption randomness")
		}
	}

	m := natFromBig(big.NewInt(plaintext))
	gm := modExp(pk.G, m, pk.NSquared)
	rn := modExp(natFromBig(r), pk.N, pk.NSquared)
	c := modMul(gm, rn, pk.NSquared)
	return &Ciphertext{C: c}, nil
}

// Add homomorphically sums two ciphertexts: Decrypt(Add(Enc(a), Enc(b))) == a+b.
func (pk *PublicKey) Add(a, b *Ciphertext) *Ciphertext {
	return &Ciphertext{C: modMul(a.C, b.C, pk.NSquared)}
}

// PartialDecrypt computes this party's contribution toward decrypting ct.
func (sk *PrivateKeyShare) PartialDecrypt(pk *PublicKey, ct *Ciphertext) *PartialDecryption {
	return &PartialDecryption{
		Index: sk.Index,
		Value: modExp(ct.C, sk.Share, pk.NSquared),
	}
}

// Combine multiplies every party's partial decryption together and
// finishes the Paillier decryption formula. It fails if the shares are not
// exactly the set produced for a single ciphertext.
func (pk *PublicKey) Combine(shares []*PartialDecryption) (Plaintext, error) {
	if len(shares) == 0 {
		return 0, errors.New("paillier: no partial decryptions to combine")
	}

	nSquared := bigFromNat(pk.NSquared)
	x := big.NewInt(1)
	seen := make(map[int]bool, len(shares))
	for _, s := range shares {
		if seen[s.Index] {
			return 0, errors.Errorf("paillier: duplicate partial decryption from party %d", s.Index)
		}
		seen[s.Index] = true
		x.Mul(x, bigFromNat(s.Value))
		x.Mod(x, nSquared)
	}

	l := lFunction(x, bigFromNat(pk.N))
	m := new(big.Int).Mul(l, bigFromNat(pk.mu))
	m.Mod(m, bigFromNat(pk.N))

	if !m.IsInt64() {
		return 0, errors.New("paillier: decrypted plaintext overflows int64")
	}
	return Plaintext(m.Int64()), nil
}

// lFunction computes L(x) = (x-1)/n, the standard Paillier decryption
// helper; x is guaranteed congruent to 1 mod n for any valid ciphertext.
func lFunction(x, n *big.Int) *big.Int {
	num := new(big.Int).Sub(x, big.NewInt(1))
	return new(big.Int).Div(num, n)
}
