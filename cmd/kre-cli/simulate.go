package main

import (
	"context"
	"fmt"

	"github.com/luxfi/kre/pkg/kre"
	"github.com/luxfi/kre/pkg/kre/testutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func parseNoiseLevel(s string) (kre.NoiseLevel, error) {
	switch s {
	case "none", "":
		return kre.NoiseNone, nil
	case "low":
		return kre.NoiseLow, nil
	case "medium":
		return kre.NoiseMedium, nil
	case "high":
		return kre.NoiseHigh, nil
	default:
		return 0, fmt.Errorf("unknown noise level %q", s)
	}
}

func parseScaleFn(s string) (kre.ScaleFunc, error) {
	switch s {
	case "fixed", "":
		return kre.ScaleFixed, nil
	case "sigmoid":
		return kre.ScaleSigmoid, nil
	default:
		return nil, fmt.Errorf("unknown scale function %q", s)
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync()

	dbs := testutil.SampleDatabases(numParties, dbSize, -1000, 1000)
	totalN := 0
	for _, db := range dbs {
		totalN += len(db)
	}

	k := kRank
	if k <= 0 {
		k = testutil.KMedian.ToK(totalN)
	}

	level, err := parseNoiseLevel(noiseLevel)
	if err != nil {
		return err
	}
	scale, err := parseScaleFn(scaleFn)
	if err != nil {
		return err
	}

	var coordinator *kre.Coordinator
	var parties []kre.Party
	if level == kre.NoiseNone {
		coordinator, parties, err = kre.NewProtocol(dbs, k, bits)
	} else {
		coordinator, parties, err = kre.NewDPProtocol(dbs, k, bits, level, scale)
	}
	if err != nil {
		return fmt.Errorf("constructing protocol: %w", err)
	}

	value, found, err := kre.RunLocal(context.Background(), logger, coordinator, parties)
	if err != nil {
		return fmt.Errorf("protocol run: %w", err)
	}
	if !found {
		return fmt.Errorf("protocol did not converge")
	}

	expected := testutil.KthElement(dbs, k)
	fmt.Printf("k=%d over %d parties (N=%d): got %d, exact answer %d\n", k, numParties, totalN, value, expected)
	return nil
}
