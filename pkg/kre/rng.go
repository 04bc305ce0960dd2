package kre

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

// derivePartyRNG expands masterSeed and a party's index into an independent
// byte stream via HKDF. Two parties derived from the same master seed never
// share output: each gets its own HKDF "info" label carrying its index, per
// spec §5's "RNGs are never shared across parties".
func derivePartyRNG(masterSeed []byte, index int) (io.Reader, error) {
	info := make([]byte, 8)
	binary.BigEndian.PutUint64(info, uint64(index))
	return hkdf.New(sha256.New, masterSeed, nil, info), nil
}

// newMasterSeed draws 32 bytes of fresh entropy. newProtocol calls it once
// for every RNG stream it derives (each party's encryption stream and, for
// DP parties, each noise stream), so no two streams share a seed.
func newMasterSeed() ([]byte, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, errors.Wrap(err, "kre: sampling master seed")
	}
	return seed, nil
}
