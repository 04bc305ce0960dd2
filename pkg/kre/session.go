package kre

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// NewSessionID derives a session identifier from a fresh UUID plus the
// round-protocol parameters (n, k, N), mirroring the teacher protocol's
// StartFunc(sessionID []byte) convention. Binding the parameters into the
// hash means two runs with the same UUID but different (n, k, N) never
// collide, which matters once session IDs are reused as the domain tag for
// broadcast-hash verification in pkg/kre/net.
func NewSessionID(n, k, totalN int) []byte {
	id := uuid.New()
	h := blake3.New()
	h.Write(id[:])
	var params [24]byte
	binary.BigEndian.PutUint64(params[0:8], uint64(n))
	binary.BigEndian.PutUint64(params[8:16], uint64(k))
	binary.BigEndian.PutUint64(params[16:24], uint64(totalN))
	h.Write(params[:])
	return h.Sum(nil)
}

// BroadcastHash hashes the Phase-A aggregate ciphertext bytes under the
// session ID as domain separator. pkg/kre/net's NetworkServer computes this
// over the (sum_lt, sum_gt) it is about to broadcast and attaches it to the
// MsgDecryptRequest; NetworkClient recomputes it over the bytes it actually
// received and rejects the round if the two disagree, so a party never acts
// on a decrypt request whose aggregate bytes do not match the hash the
// coordinator attached under this session ID. The check compares each
// message with its own hash; parties do not compare hashes with each other.
func BroadcastHash(sessionID []byte, ltBytes, gtBytes []byte) []byte {
	h := blake3.New()
	h.Write(sessionID)
	h.Write(ltBytes)
	h.Write(gtBytes)
	return h.Sum(nil)
}
