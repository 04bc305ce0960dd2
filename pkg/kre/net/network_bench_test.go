package net_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/luxfi/kre/pkg/kre"
	kre_net "github.com/luxfi/kre/pkg/kre/net"
)

// BenchmarkNetworkProtocol reproduces original_source's
// net/benchmarks.rs::average_test_multi_party harness: it runs the full
// networked protocol end to end over real TCP loopback connections and
// reports the cost of one complete run, ciphertext framing included.
func BenchmarkNetworkProtocol(b *testing.B) {
	for i := 0; i < b.N; i++ {
		runNetworkProtocolOnce(b)
	}
}

func runNetworkProtocolOnce(b *testing.B) {
	b.Helper()

	dbs := [][]int{
		{1, 3, 5, 7, 9},
		{2, 4, 6, 8, 10},
		{0, 11, 12, 13, 14},
	}
	const k = 8
	const bits = 256

	coordinator, parties, err := kre.NewProtocol(dbs, k, bits)
	if err != nil {
		b.Fatalf("NewProtocol: %v", err)
	}
	sessionID := kre.NewSessionID(len(parties), k, 15)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		b.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	serverConns := make([]net.Conn, len(parties))
	accepted := make(chan struct{})
	go func() {
		for i := range parties {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			serverConns[i] = conn
		}
		close(accepted)
	}()

	clientConns := make([]net.Conn, len(parties))
	for i := range parties {
		conn, err := net.Dial("tcp", listener.Addr().String())
		if err != nil {
			b.Fatalf("dial: %v", err)
		}
		clientConns[i] = conn
	}
	<-accepted

	capRounds := parties[0].RoundCap()
	server := kre_net.NewNetworkServer(coordinator, serverConns, sessionID, capRounds, 5*time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		_, err := server.Run(ctx)
		serverDone <- err
	}()

	clientDone := make(chan error, len(parties))
	for i, party := range parties {
		client := kre_net.NewNetworkClient(clientConns[i], party, sessionID, i, 5*time.Second, nil)
		go func() {
			_, _, err := client.Run(ctx)
			clientDone <- err
		}()
	}

	if err := <-serverDone; err != nil {
		b.Fatalf("server run: %v", err)
	}
	for range parties {
		if err := <-clientDone; err != nil {
			b.Fatalf("client run: %v", err)
		}
	}

	for _, conn := range serverConns {
		conn.Close()
	}
	for _, conn := range clientConns {
		conn.Close()
	}
}
