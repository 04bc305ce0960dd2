package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/luxfi/kre/pkg/kre"
	kre_net "github.com/luxfi/kre/pkg/kre/net"
	"github.com/luxfi/kre/pkg/kre/testutil"
	"github.com/spf13/cobra"
)

func runConnect(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync()

	path := filepath.Join(bundleDir, fmt.Sprintf("party-%d.cbor", partyIndex))
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading bundle for party %d (run serve first): %w", partyIndex, err)
	}
	var bundle partyBundle
	if err := cbor.Unmarshal(data, &bundle); err != nil {
		return fmt.Errorf("decoding bundle: %w", err)
	}

	db := testutil.SampleDatabase(dbSize, bundle.GlobalMin, bundle.GlobalMax)

	party, err := kre.NewParty(db, bundle.Index, bundle.NumParties, bundle.K, bundle.TotalN,
		bundle.GlobalMin, bundle.GlobalMax, bundle.PublicKey, bundle.Share, rand.Reader)
	if err != nil {
		return fmt.Errorf("constructing party: %w", err)
	}

	conn, err := net.Dial("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("dialing coordinator at %s: %w", listenAddr, err)
	}
	defer conn.Close()

	client := kre_net.NewNetworkClient(conn, party, bundle.SessionID, bundle.Index, 30*time.Second, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	value, found, err := client.Run(ctx)
	if err != nil {
		return fmt.Errorf("protocol run: %w", err)
	}
	if !found {
		fmt.Println("protocol aborted without converging")
		return nil
	}
	fmt.Printf("party %d: k-th element is %d\n", bundle.Index, value)
	return nil
}
