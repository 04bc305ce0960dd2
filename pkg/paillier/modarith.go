package paillier

import (
	"math/big"

	"github.com/cronokirby/saferith"
)

// natFromBig lifts a non-negative big.Int into a saferith.Nat. saferith has
// no prime-generation or gcd/lcm helpers of its own (those belong to
// crypto/rand and math/big respectively), so key generation works in
// math/big and only crosses into saferith.Nat for the values that are
// actually part of the public API: the public key, key shares, ciphertexts
// and partial decryptions.
func natFromBig(x *big.Int) *saferith.Nat {
	return new(saferith.Nat).SetBytes(x.Bytes())
}

func bigFromNat(n *saferith.Nat) *big.Int {
	return new(big.Int).SetBytes(n.Bytes())
}

// modExp computes base^exp mod m using math/big under the hood, bridging
// through saferith.Nat at the boundary so that every value the protocol
// passes around (Ciphertext, PartialDecryption) is saferith-backed.
func modExp(base, exp, m *saferith.Nat) *saferith.Nat {
	b := bigFromNat(base)
	e := bigFromNat(exp)
	mm := bigFromNat(m)
	return natFromBig(new(big.Int).Exp(b, e, mm))
}

func modMul(a, b, m *saferith.Nat) *saferith.Nat {
	r := new(big.Int).Mul(bigFromNat(a), bigFromNat(b))
	r.Mod(r, bigFromNat(m))
	return natFromBig(r)
}

func natUint64(x uint64) *saferith.Nat {
	return new(saferith.Nat).SetUint64(x)
}
