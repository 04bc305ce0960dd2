package kre

import (
	"context"

	"github.com/luxfi/kre/pkg/paillier"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunLocal runs the in-process protocol driver: direct calls between the
// coordinator and every party, no transport. It implements spec.md §4.1's
// two-phase round structure and returns (value, found, err) instead of a
// sentinel -1 on abort, resolving the "Return of -1 on abort" DESIGN NOTE.
//
// Phase A and Phase B each fan out across parties with an errgroup, mirroring
// the teacher's and the original's rayon::join pairing: per-party work is
// commutative and data-parallel within a phase, but phase B never starts
// until every party's phase-A contribution has been aggregated.
func RunLocal(ctx context.Context, logger *zap.Logger, coordinator *Coordinator, parties []Party) (value int, found bool, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(parties) == 0 {
		return 0, false, &InputInvalid{Reason: "at least one party is required"}
	}

	capRounds := parties[0].RoundCap()

	round := 0
	phase := PhaseAwaitCounts

	var sumLT, sumGT *paillier.Ciphertext
	var plainLT, plainGT int
	var verdict Verdict

	for phase != PhaseDone {
		select {
		case <-ctx.Done():
			return 0, false, &TransportFailure{Err: ctx.Err()}
		default:
		}

		switch phase {
		case PhaseAwaitCounts:
			if round >= capRounds {
				return 0, false, &RoundCapExceeded{Rounds: round, Cap: capRounds}
			}

			lts := make([]*paillier.Ciphertext, len(parties))
			gts := make([]*paillier.Ciphertext, len(parties))

			g, _ := errgroup.WithContext(ctx)
			for i, party := range parties {
				i, party := i, party
				g.Go(func() error {
					lt, gt, err := party.LocalComputation()
					if err != nil {
						return err
					}
					lts[i] = lt
					gts[i] = gt
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				logger.Error("phase A local computation failed", zap.Int("round", round), zap.Error(err))
				return 0, false, err
			}

			var err error
			sumLT, sumGT, err = coordinator.Aggregate(lts, gts)
			if err != nil {
				logger.Error("phase A aggregation failed", zap.Int("round", round), zap.Error(err))
				return 0, false, err
			}
			phase = PhaseAwaitShares

		case PhaseAwaitShares:
			ltShares := make([]*paillier.PartialDecryption, len(parties))
			gtShares := make([]*paillier.PartialDecryption, len(parties))

			g, _ := errgroup.WithContext(ctx)
			for i, party := range parties {
				i, party := i, party
				g.Go(func() error {
					ltShare, gtShare, err := party.ComputeShares(sumLT, sumGT)
					if err != nil {
						return err
					}
					ltShares[i] = ltShare
					gtShares[i] = gtShare
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				logger.Error("phase B share computation failed", zap.Int("round", round), zap.Error(err))
				return 0, false, err
			}

			var err error
			plainLT, plainGT, err = coordinator.Combine(ltShares, gtShares)
			if err != nil {
				logger.Error("phase B combine failed", zap.Int("round", round), zap.Error(err))
				return 0, false, err
			}
			phase = PhaseDecide

		case PhaseDecide:
			verdict = coordinator.Verdict(plainLT, plainGT)
			logger.Debug("round decided",
				zap.Int("round", round),
				zap.Int("sum_lt", plainLT),
				zap.Int("sum_gt", plainGT),
				zap.Stringer("verdict", verdict))

			if verdict == VerdictAbort {
				return 0, false, &RangeViolation{SumLT: plainLT, SumGT: plainGT, N: coordinator.N}
			}

			var result int
			var anyFound bool
			for _, party := range parties {
				v, f := party.Update(verdict)
				if f {
					result = v
					anyFound = true
				}
			}
			if anyFound {
				return result, true, nil
			}

			round++
			phase = PhaseAwaitCounts
		}
	}

	return 0, false, &InputInvalid{Reason: "unreachable: round loop exited without a terminal phase"}
}
