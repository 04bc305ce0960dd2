package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose bool

	// Protocol options shared across subcommands
	numParties int
	dbSize     int
	kRank      int
	bits       int
	noiseLevel string
	scaleFn    string

	// serve/connect
	listenAddr string
	partyIndex int
	totalN     int

	rootCmd = &cobra.Command{
		Use:   "kre-cli",
		Short: "CLI for the k-th ranked element protocol",
		Long:  `A CLI for running and exercising the k-th ranked element threshold protocol, in-process or over the network.`,
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run the protocol in-process against sampled databases",
		RunE:  runSimulate,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the coordinator side of the networked protocol",
		RunE:  runServe,
	}

	connectCmd = &cobra.Command{
		Use:   "connect",
		Short: "Run one party's side of the networked protocol",
		RunE:  runConnect,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	simulateCmd.Flags().IntVarP(&numParties, "parties", "n", 3, "Number of parties to simulate")
	simulateCmd.Flags().IntVar(&dbSize, "db-size", 10, "Per-party database size")
	simulateCmd.Flags().IntVarP(&kRank, "k", "k", 0, "Rank target (0 = median)")
	simulateCmd.Flags().IntVar(&bits, "bits", 512, "Paillier key size in bits")
	simulateCmd.Flags().StringVar(&noiseLevel, "noise", "none", "DP noise level: none, low, medium, high")
	simulateCmd.Flags().StringVar(&scaleFn, "scale", "fixed", "DP scale function: fixed, sigmoid")

	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", ":4747", "Address to listen on")
	serveCmd.Flags().IntVarP(&numParties, "parties", "n", 3, "Number of parties to wait for")
	serveCmd.Flags().IntVarP(&kRank, "k", "k", 0, "Rank target")
	serveCmd.Flags().IntVar(&totalN, "total-n", 0, "Sum of every party's database size (required)")
	serveCmd.Flags().IntVar(&bits, "bits", 512, "Paillier key size in bits")
	serveCmd.MarkFlagRequired("total-n")

	connectCmd.Flags().StringVarP(&listenAddr, "server", "s", "127.0.0.1:4747", "Coordinator address")
	connectCmd.Flags().IntVarP(&partyIndex, "index", "i", 0, "This party's index")
	connectCmd.Flags().IntVar(&dbSize, "db-size", 10, "Size of this party's sampled database")

	rootCmd.AddCommand(simulateCmd, serveCmd, connectCmd)
}

func newLogger() *zap.Logger {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
