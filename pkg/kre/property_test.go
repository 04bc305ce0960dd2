package kre_test

import (
	"context"
	"crypto/rand"
	"sort"
	"testing"
	"testing/quick"

	"github.com/luxfi/kre/pkg/kre"
	"github.com/luxfi/kre/pkg/kre/testutil"
	"github.com/luxfi/kre/pkg/paillier"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestKREProperties(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "kre Property-Based Tests")
}

var _ = Describe("k-th ranked element properties", func() {

	Describe("P1: correctness against the sorted union, within RunLocal's round cap", func() {
		It("returns the same k-th element kth_element would compute directly", func() {
			property := func(seed uint16, kRaw uint8) bool {
				numParties := int(seed%4) + 1
				dbSize := int(seed%7) + 1
				lo, hi := -50, 50

				dbs := testutil.SampleDatabases(numParties, dbSize, lo, hi)
				totalN := 0
				for _, db := range dbs {
					totalN += len(db)
				}
				k := int(kRaw)%totalN + 1

				coordinator, parties, err := kre.NewProtocol(dbs, k, 256)
				if err != nil {
					return true
				}

				value, found, err := kre.RunLocal(context.Background(), nil, coordinator, parties)
				if err != nil || !found {
					return false
				}

				expected := testutil.KthElement(dbs, k)
				return value == expected
			}

			Expect(quick.Check(property, &quick.Config{MaxCount: 40})).To(Succeed())
		})
	})

	Describe("P4: idempotent verdict", func() {
		It("is a pure function of (sum_lt, sum_gt, k, N)", func() {
			property := func(sumLT, sumGT uint8, kRaw, nRaw uint8) bool {
				n := int(nRaw) + 1
				k := int(kRaw)%n + 1

				coordinator, err := kre.NewCoordinator(1, k, n, nil)
				if err != nil {
					return true
				}

				first := coordinator.Verdict(int(sumLT), int(sumGT))
				second := coordinator.Verdict(int(sumLT), int(sumGT))
				return first == second
			}

			Expect(quick.Check(property, &quick.Config{MaxCount: 100})).To(Succeed())
		})
	})

	Describe("P5: homomorphic aggregation", func() {
		It("decrypts the sum of encrypted counts to their plaintext sum", func() {
			property := func(values []uint8) bool {
				if len(values) == 0 || len(values) > 8 {
					return true
				}
				n := len(values)
				pk, shares, err := paillier.GenerateKeyPair(256, n, n)
				if err != nil {
					return false
				}

				sum := pk.Identity()
				var expected int64
				for _, v := range values {
					ct, err := pk.Encrypt(int64(v), rand.Reader)
					if err != nil {
						return false
					}
					sum = pk.Add(sum, ct)
					expected += int64(v)
				}

				partials := make([]*paillier.PartialDecryption, n)
				for i, share := range shares {
					partials[i] = share.PartialDecrypt(pk, sum)
				}

				got, err := pk.Combine(partials)
				if err != nil {
					return false
				}
				return int64(got) == expected
			}

			Expect(quick.Check(property, &quick.Config{MaxCount: 15})).To(Succeed())
		})
	})

	Describe("P6: DP unbiasedness", func() {
		It("keeps the noise audit mean within a fixed tolerance of 0 over many runs", func() {
			const runs = 100
			var sum float64
			var count int
			for i := 0; i < runs; i++ {
				db := testutil.SampleDatabase(40, -100, 100)
				coordinator, parties, err := kre.NewDPProtocol([][]int{db}, 20, 256, kre.NoiseMedium, kre.ScaleSigmoid)
				Expect(err).NotTo(HaveOccurred())

				_, _, _ = kre.RunLocal(context.Background(), nil, coordinator, parties)

				auditable, ok := parties[0].(interface{ NoiseAudit() []float64 })
				Expect(ok).To(BeTrue())
				for _, eta := range auditable.NoiseAudit() {
					sum += eta
					count++
				}
			}
			mean := sum / float64(count)
			Expect(mean).To(BeNumerically("~", 0, 2.0))
		})
	})

	Describe("P7: DP consistency on zero noise", func() {
		It("returns the exact k-th element when NoiseLevel is None", func() {
			property := func(seed uint16) bool {
				db := testutil.SampleDatabase(int(seed%10)+5, -30, 30)
				sorted := append([]int(nil), db...)
				sort.Ints(sorted)
				k := int(seed)%len(sorted) + 1

				coordinator, parties, err := kre.NewDPProtocol([][]int{db}, k, 256, kre.NoiseNone, kre.ScaleFixed)
				if err != nil {
					return true
				}
				value, found, err := kre.RunLocal(context.Background(), nil, coordinator, parties)
				if err != nil || !found {
					return false
				}
				return value == sorted[k-1]
			}

			Expect(quick.Check(property, &quick.Config{MaxCount: 40})).To(Succeed())
		})
	})
})
