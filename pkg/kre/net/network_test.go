package net_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/luxfi/kre/pkg/kre"
	kre_net "github.com/luxfi/kre/pkg/kre/net"
	"github.com/luxfi/kre/pkg/kre/testutil"
)

// TestNetworkProtocolMatchesRunLocal drives the same databases through both
// drivers and checks they agree. This exercises the actual wire round-trip
// (CBOR framing of paillier.Ciphertext/PartialDecryption, and the
// broadcast-hash check) rather than only checking for a nil error, which is
// all BenchmarkNetworkProtocol does.
func TestNetworkProtocolMatchesRunLocal(t *testing.T) {
	dbs := [][]int{
		{1, 3, 5, 7, 9},
		{2, 4, 6, 8, 10},
		{0, 11, 12, 13, 14},
	}
	const k = 8
	const bits = 256

	localCoordinator, localParties, err := kre.NewProtocol(dbs, k, bits)
	if err != nil {
		t.Fatalf("NewProtocol (local): %v", err)
	}
	wantValue, wantFound, err := kre.RunLocal(context.Background(), nil, localCoordinator, localParties)
	if err != nil {
		t.Fatalf("RunLocal: %v", err)
	}
	if !wantFound {
		t.Fatalf("RunLocal did not converge")
	}

	netCoordinator, netParties, err := kre.NewProtocol(dbs, k, bits)
	if err != nil {
		t.Fatalf("NewProtocol (networked): %v", err)
	}
	totalN := 0
	for _, db := range dbs {
		totalN += len(db)
	}
	sessionID := kre.NewSessionID(len(netParties), k, totalN)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	serverConns := make([]net.Conn, len(netParties))
	accepted := make(chan struct{})
	go func() {
		for i := range netParties {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			serverConns[i] = conn
		}
		close(accepted)
	}()

	clientConns := make([]net.Conn, len(netParties))
	for i := range netParties {
		conn, err := net.Dial("tcp", listener.Addr().String())
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		clientConns[i] = conn
	}
	<-accepted

	capRounds := netParties[0].RoundCap()
	server := kre_net.NewNetworkServer(netCoordinator, serverConns, sessionID, capRounds, 5*time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		_, err := server.Run(ctx)
		serverDone <- err
	}()

	type clientResult struct {
		value int
		found bool
		err   error
	}
	clientDone := make(chan clientResult, len(netParties))
	for i, party := range netParties {
		client := kre_net.NewNetworkClient(clientConns[i], party, sessionID, i, 5*time.Second, nil)
		go func() {
			value, found, err := client.Run(ctx)
			clientDone <- clientResult{value: value, found: found, err: err}
		}()
	}

	if err := <-serverDone; err != nil {
		t.Fatalf("server run: %v", err)
	}
	for range netParties {
		res := <-clientDone
		if res.err != nil {
			t.Fatalf("client run: %v", res.err)
		}
		if !res.found {
			t.Fatalf("client did not converge")
		}
		if res.value != wantValue {
			t.Fatalf("networked driver returned %d, RunLocal returned %d", res.value, wantValue)
		}
	}

	expected := testutil.KthElement(dbs, k)
	if wantValue != expected {
		t.Fatalf("RunLocal returned %d, ground truth is %d", wantValue, expected)
	}

	for _, conn := range serverConns {
		conn.Close()
	}
	for _, conn := range clientConns {
		conn.Close()
	}
}
