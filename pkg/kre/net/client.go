package net

import (
	"bytes"
	"context"
	"net"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/luxfi/kre/pkg/kre"
	"github.com/luxfi/kre/pkg/paillier"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NetworkClient drives one party's side of the networked protocol over a
// single TCP connection to the coordinator, implementing the same
// round structure as kre.RunLocal but over the wire.
type NetworkClient struct {
	conn      net.Conn
	party     kre.Party
	sessionID []byte
	index     int
	deadline  time.Duration
	logger    *zap.Logger
}

// NewNetworkClient wraps an established connection to the coordinator.
// sessionID must be the same value NewNetworkServer was constructed with
// (distributed to every party out of band, alongside its key share); it is
// the domain separator NetworkClient checks the coordinator's broadcast
// hash against. deadline bounds how long the client waits for each server
// message before treating the round as a TransportFailure.
func NewNetworkClient(conn net.Conn, party kre.Party, sessionID []byte, index int, deadline time.Duration, logger *zap.Logger) *NetworkClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetworkClient{conn: conn, party: party, sessionID: sessionID, index: index, deadline: deadline, logger: logger}
}

// Run executes rounds until the party observes FoundK or Abort, or ctx is
// cancelled. Each round walks the same AwaitCounts -> AwaitShares -> Decide
// phases as kre.RunLocal, just with a frame exchange standing in for a
// direct call at each boundary.
func (c *NetworkClient) Run(ctx context.Context) (value int, found bool, err error) {
	phase := kre.PhaseAwaitCounts

	for {
		select {
		case <-ctx.Done():
			return 0, false, &kre.TransportFailure{Err: ctx.Err()}
		default:
		}

		if err := c.setDeadline(); err != nil {
			return 0, false, err
		}

		switch phase {
		case kre.PhaseAwaitCounts:
			lt, gt, err := c.party.LocalComputation()
			if err != nil {
				return 0, false, err
			}
			ltBytes, err := cbor.Marshal(lt)
			if err != nil {
				return 0, false, errors.Wrap(err, "kre/net: encoding lt ciphertext")
			}
			gtBytes, err := cbor.Marshal(gt)
			if err != nil {
				return 0, false, errors.Wrap(err, "kre/net: encoding gt ciphertext")
			}
			if err := writeFrame(c.conn, &ClientMessage{Kind: MsgCiphertexts, Party: c.index, LT: ltBytes, GT: gtBytes}); err != nil {
				return 0, false, &kre.TransportFailure{Err: err}
			}
			phase = kre.PhaseAwaitShares

		case kre.PhaseAwaitShares:
			var decryptReq ServerMessage
			if err := readFrame(c.conn, &decryptReq); err != nil {
				return 0, false, &kre.TransportFailure{Err: err}
			}
			if decryptReq.Kind != MsgDecryptRequest {
				return 0, false, &kre.TransportFailure{Err: errors.Errorf("kre/net: expected decrypt request, got kind %d", decryptReq.Kind)}
			}
			if want := kre.BroadcastHash(c.sessionID, decryptReq.LT, decryptReq.GT); !bytes.Equal(want, decryptReq.Hash) {
				return 0, false, &kre.TransportFailure{Err: errors.New("kre/net: broadcast hash mismatch on decrypt request")}
			}

			var sumLT, sumGT paillier.Ciphertext
			if err := cbor.Unmarshal(decryptReq.LT, &sumLT); err != nil {
				return 0, false, errors.Wrap(err, "kre/net: decoding sum_lt")
			}
			if err := cbor.Unmarshal(decryptReq.GT, &sumGT); err != nil {
				return 0, false, errors.Wrap(err, "kre/net: decoding sum_gt")
			}

			ltShare, gtShare, err := c.party.ComputeShares(&sumLT, &sumGT)
			if err != nil {
				return 0, false, err
			}
			ltShareBytes, err := cbor.Marshal(ltShare)
			if err != nil {
				return 0, false, errors.Wrap(err, "kre/net: encoding lt share")
			}
			gtShareBytes, err := cbor.Marshal(gtShare)
			if err != nil {
				return 0, false, errors.Wrap(err, "kre/net: encoding gt share")
			}
			if err := writeFrame(c.conn, &ClientMessage{Kind: MsgShares, Party: c.index, LT: ltShareBytes, GT: gtShareBytes}); err != nil {
				return 0, false, &kre.TransportFailure{Err: err}
			}
			phase = kre.PhaseDecide

		case kre.PhaseDecide:
			var verdictMsg ServerMessage
			if err := readFrame(c.conn, &verdictMsg); err != nil {
				return 0, false, &kre.TransportFailure{Err: err}
			}
			if verdictMsg.Kind != MsgVerdict {
				return 0, false, &kre.TransportFailure{Err: errors.Errorf("kre/net: expected verdict, got kind %d", verdictMsg.Kind)}
			}

			verdict := kre.Verdict(verdictMsg.Verdict)
			v, f := c.party.Update(verdict)
			c.logger.Debug("client applied verdict", zap.Int("party", c.index), zap.Stringer("verdict", verdict))

			if verdict == kre.VerdictAbort {
				// A party that receives Abort discards round state and
				// returns None: the coordinator's Run returns the failing
				// reason as its own error, so this is not itself an error
				// from the party's point of view.
				return 0, false, nil
			}
			if f {
				return v, true, nil
			}
			phase = kre.PhaseAwaitCounts
		}
	}
}

func (c *NetworkClient) setDeadline() error {
	if c.deadline <= 0 {
		return nil
	}
	if err := c.conn.SetDeadline(time.Now().Add(c.deadline)); err != nil {
		return &kre.TransportFailure{Err: err}
	}
	return nil
}
