package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/luxfi/kre/pkg/kre"
	kre_net "github.com/luxfi/kre/pkg/kre/net"
	"github.com/luxfi/kre/pkg/paillier"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// partyBundle is the crypto material and protocol parameters a party needs
// to join a networked run: its key share, the shared public key, and the
// search-range / rank parameters every party must agree on. It carries no
// database, since each party's database is never shared with anyone.
type partyBundle struct {
	Index      int                       `cbor:"index"`
	NumParties int                       `cbor:"num_parties"`
	K          int                       `cbor:"k"`
	TotalN     int                       `cbor:"total_n"`
	GlobalMin  int                       `cbor:"global_min"`
	GlobalMax  int                       `cbor:"global_max"`
	SessionID  []byte                    `cbor:"session_id"`
	PublicKey  *paillier.PublicKey       `cbor:"pk"`
	Share      *paillier.PrivateKeyShare `cbor:"share"`
}

const bundleDir = "./kre-data"

// The initial search range is not known to the coordinator in a real
// deployment (it never sees any party's data); the demo fixes a wide
// symmetric range large enough for typical sampled databases rather than
// inventing a range-negotiation sub-protocol out of scope for this CLI.
const demoGlobalMin, demoGlobalMax = -1 << 20, 1 << 20

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync()

	if kRank <= 0 || totalN <= 0 {
		return fmt.Errorf("--k and --total-n must both be set and positive for serve")
	}

	pk, shares, err := paillier.GenerateKeyPair(bits, numParties, numParties)
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		return fmt.Errorf("creating bundle directory: %w", err)
	}
	sessionID := kre.NewSessionID(numParties, kRank, totalN)
	for i, share := range shares {
		bundle := &partyBundle{
			Index:      i,
			NumParties: numParties,
			K:          kRank,
			TotalN:     totalN,
			GlobalMin:  demoGlobalMin,
			GlobalMax:  demoGlobalMax,
			SessionID:  sessionID,
			PublicKey:  pk,
			Share:      share,
		}
		data, err := cbor.Marshal(bundle)
		if err != nil {
			return fmt.Errorf("encoding bundle for party %d: %w", i, err)
		}
		path := filepath.Join(bundleDir, fmt.Sprintf("party-%d.cbor", i))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("writing bundle for party %d: %w", i, err)
		}
		logger.Info("wrote party bundle", zap.Int("party", i), zap.String("path", path))
	}

	coordinator, err := kre.NewCoordinator(numParties, kRank, totalN, pk)
	if err != nil {
		return fmt.Errorf("constructing coordinator: %w", err)
	}

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", listenAddr, err)
	}
	defer listener.Close()
	logger.Info("waiting for parties", zap.String("address", listenAddr), zap.Int("parties", numParties))

	conns := make([]net.Conn, numParties)
	for i := 0; i < numParties; i++ {
		conn, err := listener.Accept()
		if err != nil {
			return fmt.Errorf("accepting party %d: %w", i, err)
		}
		conns[i] = conn
	}

	capRounds := roundCapFor(demoGlobalMin, demoGlobalMax)
	server := kre_net.NewNetworkServer(coordinator, conns, sessionID, capRounds, 30*time.Second, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	found, err := server.Run(ctx)
	if err != nil {
		return fmt.Errorf("protocol run: %w", err)
	}
	if found {
		fmt.Println("protocol converged; each connected party's log carries the k-th element it computed")
	}
	return nil
}

// roundCapFor mirrors the round-cap formula kre.NewParty computes
// internally; the CLI recomputes it rather than exporting an internal
// helper for this one caller.
func roundCapFor(a, b int) int {
	span := b - a + 1
	if span < 1 {
		span = 1
	}
	bits := 0
	for (1 << bits) < span {
		bits++
	}
	return bits + 4
}
