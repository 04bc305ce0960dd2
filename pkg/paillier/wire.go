package paillier

import (
	"github.com/cronokirby/saferith"
	"github.com/fxamacker/cbor/v2"
)

// *saferith.Nat carries its limbs as unexported fields, so handing one
// straight to cbor.Marshal encodes an empty map. Every wire type below
// implements cbor.Marshaler/Unmarshaler and stores its Nat fields as plain
// []byte on the wire instead, the same "stored as binary data for CBOR
// compatibility" idiom the teacher uses for its own curve scalars.

type ciphertextWire struct {
	C []byte `cbor:"c"`
}

// MarshalCBOR implements cbor.Marshaler.
func (c *Ciphertext) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(ciphertextWire{C: c.C.Bytes()})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (c *Ciphertext) UnmarshalCBOR(data []byte) error {
	var w ciphertextWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	c.C = new(saferith.Nat).SetBytes(w.C)
	return nil
}

type partialDecryptionWire struct {
	Index int    `cbor:"index"`
	Value []byte `cbor:"value"`
}

func (p *PartialDecryption) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(partialDecryptionWire{Index: p.Index, Value: p.Value.Bytes()})
}

func (p *PartialDecryption) UnmarshalCBOR(data []byte) error {
	var w partialDecryptionWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Index = w.Index
	p.Value = new(saferith.Nat).SetBytes(w.Value)
	return nil
}

type publicKeyWire struct {
	N        []byte `cbor:"n"`
	NSquared []byte `cbor:"n_squared"`
	G        []byte `cbor:"g"`
	Mu       []byte `cbor:"mu"`
}

// MarshalCBOR round-trips mu (unexported) along with the public fields;
// shipping a PublicKey to a party that never calls Combine is harmless,
// and keeping the wire form faithful to the in-memory value avoids a
// parallel "partial public key" type.
func (pk *PublicKey) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(publicKeyWire{
		N:        pk.N.Bytes(),
		NSquared: pk.NSquared.Bytes(),
		G:        pk.G.Bytes(),
		Mu:       pk.mu.Bytes(),
	})
}

func (pk *PublicKey) UnmarshalCBOR(data []byte) error {
	var w publicKeyWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	pk.N = new(saferith.Nat).SetBytes(w.N)
	pk.NSquared = new(saferith.Nat).SetBytes(w.NSquared)
	pk.G = new(saferith.Nat).SetBytes(w.G)
	pk.mu = new(saferith.Nat).SetBytes(w.Mu)
	return nil
}

type privateKeyShareWire struct {
	Index int    `cbor:"index"`
	Share []byte `cbor:"share"`
}

func (sk *PrivateKeyShare) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(privateKeyShareWire{Index: sk.Index, Share: sk.Share.Bytes()})
}

func (sk *PrivateKeyShare) UnmarshalCBOR(data []byte) error {
	var w privateKeyShareWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	sk.Index = w.Index
	sk.Share = new(saferith.Nat).SetBytes(w.Share)
	return nil
}
