package net

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/luxfi/kre/pkg/kre"
	"github.com/luxfi/kre/pkg/paillier"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NetworkServer is the coordinator's side of the networked driver: one
// long-lived connection per party, driven through the same two-phase round
// structure as kre.RunLocal. Unlike the original implementation's tokio
// mpsc fan-in/fan-out, reads from each connection happen directly and
// concurrently; a partial-failure round collects every connection's error
// with go-multierror before the coordinator decides to abort.
type NetworkServer struct {
	coordinator *kre.Coordinator
	conns       []net.Conn
	sessionID   []byte
	capRounds   int
	deadline    time.Duration
	logger      *zap.Logger
}

// NewNetworkServer wires one connection per party, already accepted and
// handshaked by the caller, to coordinator. sessionID is bound into the
// broadcast hash every MsgDecryptRequest carries; it must be the same value
// distributed to every party alongside its key share (see
// cmd/kre-cli/serve.go's bundle). capRounds is the same bound kre.RunLocal
// enforces (party.RoundCap()).
func NewNetworkServer(coordinator *kre.Coordinator, conns []net.Conn, sessionID []byte, capRounds int, deadline time.Duration, logger *zap.Logger) *NetworkServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetworkServer{coordinator: coordinator, conns: conns, sessionID: sessionID, capRounds: capRounds, deadline: deadline, logger: logger}
}

// Run drives rounds until a verdict of FoundK or Abort is broadcast, or ctx
// is cancelled. It does not itself learn the k-th element — only the
// parties know their own m — so a true return means the FoundK verdict was
// written to every party's connection, on which each party's Update
// returns found=true; the caller (e.g. the
// benchmark harness or cmd/kre-cli connect) collects each party's value
// out-of-band. Every round walks the same AwaitCounts -> AwaitShares phases
// as kre.RunLocal; the network round has no separate wire round-trip for
// Decide, so the verdict is computed and broadcast at the end of
// AwaitShares instead.
func (s *NetworkServer) Run(ctx context.Context) (terminated bool, err error) {
	round := 0
	phase := kre.PhaseAwaitCounts
	var sumLT, sumGT *paillier.Ciphertext

	for {
		select {
		case <-ctx.Done():
			s.broadcastAbort()
			return false, &kre.TransportFailure{Err: ctx.Err()}
		default:
		}

		switch phase {
		case kre.PhaseAwaitCounts:
			if round >= s.capRounds {
				s.broadcastAbort()
				return false, &kre.RoundCapExceeded{Rounds: round, Cap: s.capRounds}
			}

			lts, gts, err := s.collectCiphertexts()
			if err != nil {
				s.broadcastAbort()
				return false, &kre.TransportFailure{Err: err}
			}

			sumLT, sumGT, err = s.coordinator.Aggregate(lts, gts)
			if err != nil {
				s.broadcastAbort()
				return false, err
			}

			sumLTBytes, err := cbor.Marshal(sumLT)
			if err != nil {
				return false, errors.Wrap(err, "kre/net: encoding sum_lt")
			}
			sumGTBytes, err := cbor.Marshal(sumGT)
			if err != nil {
				return false, errors.Wrap(err, "kre/net: encoding sum_gt")
			}
			hash := kre.BroadcastHash(s.sessionID, sumLTBytes, sumGTBytes)
			if err := s.broadcast(&ServerMessage{Kind: MsgDecryptRequest, LT: sumLTBytes, GT: sumGTBytes, Hash: hash}); err != nil {
				return false, &kre.TransportFailure{Err: err}
			}
			phase = kre.PhaseAwaitShares

		case kre.PhaseAwaitShares:
			ltShares, gtShares, err := s.collectShares()
			if err != nil {
				s.broadcastAbort()
				return false, &kre.TransportFailure{Err: err}
			}

			plainLT, plainGT, err := s.coordinator.Combine(ltShares, gtShares)
			if err != nil {
				s.broadcastAbort()
				return false, err
			}

			verdict := s.coordinator.Verdict(plainLT, plainGT)
			s.logger.Debug("server decided round", zap.Int("round", round), zap.Stringer("verdict", verdict))

			if err := s.broadcast(&ServerMessage{Kind: MsgVerdict, Verdict: int(verdict)}); err != nil {
				return false, &kre.TransportFailure{Err: err}
			}

			if verdict == kre.VerdictAbort {
				return false, &kre.RangeViolation{SumLT: plainLT, SumGT: plainGT, N: s.coordinator.N}
			}
			if verdict == kre.VerdictFoundK {
				return true, nil
			}

			round++
			phase = kre.PhaseAwaitCounts
		}
	}
}

func (s *NetworkServer) collectCiphertexts() ([]*paillier.Ciphertext, []*paillier.Ciphertext, error) {
	lts := make([]*paillier.Ciphertext, len(s.conns))
	gts := make([]*paillier.Ciphertext, len(s.conns))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var merr *multierror.Error

	for i, conn := range s.conns {
		i, conn := i, conn
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.setDeadline(conn)

			var msg ClientMessage
			if err := readFrame(conn, &msg); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, errors.Wrapf(err, "party %d", i))
				mu.Unlock()
				return
			}
			if msg.Kind != MsgCiphertexts {
				mu.Lock()
				merr = multierror.Append(merr, errors.Errorf("party %d: expected ciphertexts, got kind %d", i, msg.Kind))
				mu.Unlock()
				return
			}

			var lt, gt paillier.Ciphertext
			if err := cbor.Unmarshal(msg.LT, &lt); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, errors.Wrapf(err, "party %d: decoding lt", i))
				mu.Unlock()
				return
			}
			if err := cbor.Unmarshal(msg.GT, &gt); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, errors.Wrapf(err, "party %d: decoding gt", i))
				mu.Unlock()
				return
			}
			lts[i] = &lt
			gts[i] = &gt
		}()
	}
	wg.Wait()

	if merr.ErrorOrNil() != nil {
		return nil, nil, merr
	}
	return lts, gts, nil
}

func (s *NetworkServer) collectShares() ([]*paillier.PartialDecryption, []*paillier.PartialDecryption, error) {
	ltShares := make([]*paillier.PartialDecryption, len(s.conns))
	gtShares := make([]*paillier.PartialDecryption, len(s.conns))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var merr *multierror.Error

	for i, conn := range s.conns {
		i, conn := i, conn
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.setDeadline(conn)

			var msg ClientMessage
			if err := readFrame(conn, &msg); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, errors.Wrapf(err, "party %d", i))
				mu.Unlock()
				return
			}
			if msg.Kind != MsgShares {
				mu.Lock()
				merr = multierror.Append(merr, errors.Errorf("party %d: expected shares, got kind %d", i, msg.Kind))
				mu.Unlock()
				return
			}

			var lt, gt paillier.PartialDecryption
			if err := cbor.Unmarshal(msg.LT, &lt); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, errors.Wrapf(err, "party %d: decoding lt share", i))
				mu.Unlock()
				return
			}
			if err := cbor.Unmarshal(msg.GT, &gt); err != nil {
				mu.Lock()
				merr = multierror.Append(merr, errors.Wrapf(err, "party %d: decoding gt share", i))
				mu.Unlock()
				return
			}
			ltShares[i] = &lt
			gtShares[i] = &gt
		}()
	}
	wg.Wait()

	if merr.ErrorOrNil() != nil {
		return nil, nil, merr
	}
	return ltShares, gtShares, nil
}

func (s *NetworkServer) broadcast(msg *ServerMessage) error {
	var merr *multierror.Error
	for i, conn := range s.conns {
		s.setDeadline(conn)
		if err := writeFrame(conn, msg); err != nil {
			merr = multierror.Append(merr, errors.Wrapf(err, "party %d", i))
		}
	}
	return merr.ErrorOrNil()
}

func (s *NetworkServer) broadcastAbort() {
	_ = s.broadcast(&ServerMessage{Kind: MsgVerdict, Verdict: int(kre.VerdictAbort)})
}

func (s *NetworkServer) setDeadline(conn net.Conn) {
	if s.deadline <= 0 {
		return
	}
	_ = conn.SetDeadline(time.Now().Add(s.deadline))
}
