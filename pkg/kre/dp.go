package kre

import (
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/luxfi/kre/pkg/paillier"
	"github.com/pkg/errors"
)

// dpParty decorates a Party with Laplace-noise injection ahead of
// encryption. It embeds the Party interface rather than a concrete
// *partyState, the Go idiom for the decorator pattern the DESIGN NOTES ask
// for in place of deep inheritance.
type dpParty struct {
	Party

	level   NoiseLevel
	scaleFn ScaleFunc
	rng     io.Reader

	mu         sync.Mutex
	noiseAudit []float64
}

// NewDPParty wraps an existing party with a DP mechanism. rng must be a
// stream private to this party (see derivePartyRNG); it is never the same
// stream used for encryption randomness.
func NewDPParty(inner Party, level NoiseLevel, scaleFn ScaleFunc, rng io.Reader) *dpParty {
	return &dpParty{Party: inner, level: level, scaleFn: scaleFn, rng: rng}
}

// LocalComputation overrides the embedded Party's version: it pulls the raw
// counts, perturbs each with independently-drawn Laplace noise, clamps the
// pair so it never exceeds the database size, then encrypts.
func (d *dpParty) LocalComputation() (lt, gt *paillier.Ciphertext, err error) {
	less, greater, effectiveSize, err := d.RawCounts()
	if err != nil {
		return nil, nil, err
	}

	lessNoisy, err := d.perturb(less, effectiveSize)
	if err != nil {
		return nil, nil, err
	}
	greaterNoisy, err := d.perturb(greater, effectiveSize)
	if err != nil {
		return nil, nil, err
	}

	lessClamped, greaterClamped := clampToDBSize(lessNoisy, greaterNoisy, d.DBSize())

	return d.Encrypt(lessClamped, greaterClamped)
}

// perturb draws a single Laplace sample scaled to (level, result,
// effectiveSize) and returns max(0, round(result + noise)), recording the
// drawn noise for later audit.
func (d *dpParty) perturb(result, effectiveSize int) (int, error) {
	sigma := d.scaleFn(d.level, result, effectiveSize)
	eta, err := d.laplaceSample(sigma)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	d.noiseAudit = append(d.noiseAudit, eta)
	d.mu.Unlock()

	perturbed := int(math.Round(float64(result) + eta))
	if perturbed < 0 {
		perturbed = 0
	}
	return perturbed, nil
}

// laplaceSample draws eta from Laplace(0, sigma) by inverse-CDF of a
// Uniform(0,1) sample: eta = -sigma * sign(u-0.5) * ln(1 - 2*|u-0.5|).
// sigma == 0 (NoiseLevel None) always returns 0 without consuming the RNG.
func (d *dpParty) laplaceSample(sigma float64) (float64, error) {
	if sigma == 0 {
		return 0, nil
	}
	u, err := uniformFloat64(d.rng)
	if err != nil {
		return 0, errors.Wrap(err, "kre: drawing laplace sample")
	}
	diff := u - 0.5
	sign := 0.0
	switch {
	case diff > 0:
		sign = 1
	case diff < 0:
		sign = -1
	}
	return -sigma * sign * math.Log(1-2*math.Abs(diff)), nil
}

// clampToDBSize enforces less + greater <= size by proportionally scaling
// down the excess, preserving the invariant the coordinator relies on to
// avoid spuriously emitting Abort under DP noise.
func clampToDBSize(less, greater, size int) (int, int) {
	sum := less + greater
	if sum <= size {
		return less, greater
	}
	excess := sum - size

	lessCut := int(math.Round(float64(less) / float64(sum) * float64(excess)))
	greaterCut := int(math.Round(float64(greater) / float64(sum) * float64(excess)))

	less -= lessCut
	if less < 0 {
		less = 0
	}
	greater -= greaterCut
	if greater < 0 {
		greater = 0
	}
	return less, greater
}

// NoiseAudit returns every Laplace sample this party has drawn so far, in
// draw order. Used by property tests to check the mechanism's mean
// converges to 0 (P6) and by the audit-reporting surface carried over from
// the original dp_test.rs deviation histogram, minus the plotting.
func (d *dpParty) NoiseAudit() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]float64, len(d.noiseAudit))
	copy(out, d.noiseAudit)
	return out
}

// uniformFloat64 reads 8 bytes from r and scales them into [0, 1).
func uniformFloat64(r io.Reader) (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	bits := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(bits) / (1 << 53), nil
}

// ScaleFixed is the {None, Low, Medium, High} -> {0.0, 0.2, 0.5, 2.0} scale
// function.
func ScaleFixed(level NoiseLevel, _ int, _ int) float64 {
	switch level {
	case NoiseLow:
		return 0.2
	case NoiseMedium:
		return 0.5
	case NoiseHigh:
		return 2.0
	default:
		return 0.0
	}
}

// ScaleSigmoid grows noise with the ratio of the raw count to the effective
// database size: small counts (typical of early rounds on extreme-k
// queries) get small noise, larger counts get noise approaching the
// level's ceiling s.
func ScaleSigmoid(level NoiseLevel, result int, effectiveSize int) float64 {
	if effectiveSize < 1 {
		effectiveSize = 1
	}
	l := math.Log(float64(effectiveSize)) / math.Log(100)

	var c, s float64
	switch level {
	case NoiseLow:
		c, s = 5, l
	case NoiseMedium:
		c, s = 10, 1.5*l
	case NoiseHigh:
		c, s = 15, 2*l
	default:
		return 0.0
	}

	ratio := float64(result) / float64(effectiveSize)
	return s * 1 / (1 + math.Exp(-ratio*c+5))
}
