package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/entropylab/keystorm/internal/config"
	logpkg "github.com/entropylab/keystorm/internal/logger"
	"github.com/entropylab/keystorm/pkg/derive"
	"github.com/entropylab/keystorm/pkg/forensics"
	"github.com/entropylab/keystorm/pkg/scan"
	"github.com/entropylab/keystorm/pkg/target"
)

var (
	cfg    = config.NewConfig()
	logger *logpkg.Logger
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "keystorm",
		Short: "Weak-PRNG wallet key reconstruction and ECDSA forensics",
		Long: `A command line utility for auditing cryptocurrency wallets generated
with weak entropy. It re-derives keys from historical PRNG output,
matches the resulting addresses against a funded-address watch list,
and recovers keys from ECDSA nonce reuse.`,
	}

	var scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Enumerate a weak-entropy candidate space against the watch list",
		Run:   runScan,
	}
	scanCmd.Flags().StringVarP(&cfg.Profile, "profile", "P", "", "Vulnerability profile to scan (required)")
	scanCmd.Flags().IntVarP(&cfg.Workers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	scanCmd.Flags().StringVarP(&cfg.Backend, "backend", "b", "cpu", "Compute backend: cpu or pipeline")
	scanCmd.Flags().IntVarP(&cfg.BatchSize, "batch-size", "n", 4096, "Candidates per batch")
	scanCmd.Flags().IntVar(&cfg.SlotSize, "slot-size", 0, "Pipeline arena slot size (0 = default)")
	scanCmd.Flags().Uint64Var(&cfg.Start, "start", 0, "First seed timestamp, inclusive")
	scanCmd.Flags().Uint64Var(&cfg.End, "end", 0, "Last seed timestamp, inclusive")
	scanCmd.Flags().Uint64Var(&cfg.Step, "step", 1, "Timestamp step")
	scanCmd.Flags().StringVarP(&cfg.Dictionary, "dictionary", "d", "", "Word list for dictionary-driven profiles")
	scanCmd.Flags().StringVar(&cfg.FingerprintsFile, "fingerprints", "", "Browser fingerprint CSV (default: embedded table)")
	scanCmd.Flags().BoolVar(&cfg.AllPaths, "all-paths", false, "Derive every standard path instead of BIP44 only")
	scanCmd.Flags().Uint32Var(&cfg.IndexStart, "index-start", 0, "First address index per path")
	scanCmd.Flags().Uint32Var(&cfg.IndexCount, "index-count", 100, "Address indexes per path")
	scanCmd.Flags().StringVarP(&cfg.TargetsDB, "targets", "t", "", "Watch list database (required)")
	scanCmd.Flags().Float64Var(&cfg.FPRate, "fp-rate", 0.0001, "Bloom filter false positive rate")
	scanCmd.Flags().StringVarP(&cfg.Checkpoint, "checkpoint", "c", "", "Checkpoint file for resume")
	scanCmd.Flags().StringVarP(&cfg.ExportFile, "export", "e", "", "File to export recovered keys to (created 0600)")
	scanCmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Verbose output")
	scanCmd.Flags().StringVarP(&cfg.LogFile, "log-file", "l", "", "Log file for progress tracking (default: stdout)")
	scanCmd.Flags().IntVarP(&cfg.LogInterval, "log-interval", "i", 5, "Logging interval in seconds (default: 5)")

	var importCmd = &cobra.Command{
		Use:   "import",
		Short: "Bulk-load funded addresses into the watch list",
		Run:   runImport,
	}
	importCmd.Flags().StringVarP(&cfg.TargetsDB, "targets", "t", "", "Watch list database (required)")
	importCmd.Flags().StringVarP(&importInput, "input", "f", "-", "Address list file ('-' for stdin)")
	importCmd.Flags().StringVar(&importClass, "vuln-class", "", "Vulnerability class label for imported rows")
	importCmd.Flags().BoolVar(&importJSON, "json", false, "Parse input as a JSON array of target records")

	var recoverCmd = &cobra.Command{
		Use:   "recover-nonce",
		Short: "Recover private keys from ECDSA nonce reuse",
		Run:   runRecover,
	}
	recoverCmd.Flags().StringVarP(&recoverInput, "input", "f", "", "JSON file of observed signatures (required)")
	recoverCmd.Flags().StringVarP(&cfg.ExportFile, "export", "e", "", "File to export recovered keys to (created 0600)")
	recoverCmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(scanCmd, importCmd, recoverCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	importInput  string
	importClass  string
	importJSON   bool
	recoverInput string
)

func runScan(cmd *cobra.Command, args []string) {
	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	setupLogging()

	profile, err := scan.LookupProfile(cfg.Profile)
	if err != nil {
		fatal(err)
	}
	if !cfg.AllPaths && len(profile.Paths) > 0 {
		profile.Paths = []derive.PathSpec{derive.BIP44Path()}
	}
	profile.IndexStart = cfg.IndexStart
	if cfg.IndexCount > 0 {
		profile.IndexCount = cfg.IndexCount
	}

	store, err := target.Open(cfg.TargetsDB, nil)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	set, err := target.NewSet(store, cfg.FPRate)
	if err != nil {
		fatal(err)
	}
	logger.Printf("Watch list loaded: %d addresses, fp rate %g", set.Len(), cfg.FPRate)

	backend, err := scan.SelectBackend(cfg.Backend, profile, set, nil,
		cfg.Workers, cfg.SlotSize, logger)
	if err != nil {
		fatal(err)
	}

	space, err := cfg.BuildSpace(profile.Variant)
	if err != nil {
		fatal(err)
	}

	var exporter *keyExporter
	if cfg.ExportFile != "" {
		exporter, err = newKeyExporter(cfg.ExportFile)
		if err != nil {
			fatal(err)
		}
		defer exporter.Close()
	}

	dispatcher, err := scan.NewDispatcher(scan.DispatcherConfig{
		Profile:        profile,
		Space:          space,
		Backend:        backend,
		BatchSize:      cfg.BatchSize,
		CheckpointPath: cfg.Checkpoint,
		Logger:         logger,
		LogInterval:    logInterval(),
		Verbose:        cfg.Verbose,
		OnMatch: func(m scan.Match) {
			logger.Matchf("Match: %s", m)
			if exporter != nil {
				if err := exporter.Write(m); err != nil {
					logger.Printf("Export failed: %v", err)
				}
			} else if err := store.MarkMatched(m.Address, m.String()); err != nil {
				logger.Printf("Recording match failed: %v", err)
			}
		},
	})
	if err != nil {
		fatal(err)
	}

	// Stop cleanly on Ctrl+C: the in-flight batch finishes, the
	// checkpoint is written, and the scan resumes from there next run.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Printf("Starting %s scan (%s) with %d workers on %s backend...",
		cfg.Profile, cfg.GetScanDescription(), cfg.Workers, backend.Name())

	summary, err := dispatcher.Run(ctx)
	if err != nil && ctx.Err() == nil {
		fatal(err)
	}
	if ctx.Err() != nil {
		logger.Println("Received interrupt signal. Scan halted at last checkpoint.")
	}

	logger.Printf("Scan %s: %d candidates, %d keys, %d addresses checked, %d degenerate skipped",
		summary.State, summary.Stats.Candidates, summary.Stats.Keys,
		summary.Stats.Addresses, summary.Stats.Degenerate)
	logger.Printf("Matches: %d, Duration: %v", len(summary.Matches), summary.Duration)

	rate := 0.0
	if summary.Duration.Seconds() > 0 {
		rate = float64(summary.Stats.Candidates) / summary.Duration.Seconds()
	}
	logger.Printf("Rate: %.2f candidates/sec", rate)
}

func runImport(cmd *cobra.Command, args []string) {
	if cfg.TargetsDB == "" {
		fmt.Printf("Error: %v\n", config.ErrNoTargets)
		os.Exit(1)
	}
	setupLogging()

	in := os.Stdin
	if importInput != "-" {
		f, err := os.Open(importInput)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		in = f
	}

	store, err := target.Open(cfg.TargetsDB, nil)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	var res target.ImportResult
	if importJSON || strings.HasSuffix(importInput, ".json") {
		res, err = store.ImportJSON(in, importClass)
	} else {
		res, err = store.ImportAddresses(in, importClass)
	}
	if err != nil {
		fatal(err)
	}
	logger.Printf("Imported %d addresses, rejected %d malformed rows", res.Imported, res.Rejected)
}

// signatureRecord is the recover-nonce input row: signature and digest as
// hex, optionally the public key from the input script.
type signatureRecord struct {
	TxID   string `json:"txid"`
	Vin    int    `json:"vin"`
	Sig    string `json:"sig"`
	Digest string `json:"digest"`
	PubKey string `json:"pubkey,omitempty"`
}

func runRecover(cmd *cobra.Command, args []string) {
	setupLogging()
	if recoverInput == "" {
		fmt.Println("Error: must specify --input")
		os.Exit(1)
	}

	data, err := os.ReadFile(recoverInput)
	if err != nil {
		fatal(err)
	}
	var records []signatureRecord
	if err := json.Unmarshal(data, &records); err != nil {
		fatal(err)
	}

	index := forensics.NewIndex()
	skipped := 0
	for _, rec := range records {
		obs, err := observationFromRecord(rec)
		if err != nil {
			if cfg.Verbose {
				logger.Printf("Skipping %s:%d: %v", rec.TxID, rec.Vin, err)
			}
			skipped++
			continue
		}
		index.Add(obs)
	}
	logger.Printf("Indexed %d signatures (%d distinct r values, %d skipped)",
		len(records)-skipped, index.Len(), skipped)

	pairs := index.Pairs()
	if len(pairs) == 0 {
		logger.Println("No nonce reuse found.")
		return
	}
	logger.Printf("Found %d nonce reuse candidate pairs", len(pairs))

	var exporter *keyExporter
	if cfg.ExportFile != "" {
		exporter, err = newKeyExporter(cfg.ExportFile)
		if err != nil {
			fatal(err)
		}
		defer exporter.Close()
	}

	recovered := 0
	for _, pair := range pairs {
		priv, err := forensics.Recover(pair)
		if err != nil {
			if cfg.Verbose {
				logger.Printf("Pair %s:%d / %s:%d: %v",
					pair.A.TxID, pair.A.Vin, pair.B.TxID, pair.B.Vin, err)
			}
			continue
		}
		recovered++
		logger.Matchf("Recovered key for %s:%d and %s:%d",
			pair.A.TxID, pair.A.Vin, pair.B.TxID, pair.B.Vin)
		if exporter != nil {
			if err := exporter.WriteRecovered(pair, priv); err != nil {
				logger.Printf("Export failed: %v", err)
			}
		}
		priv.Zero()
	}
	logger.Printf("Recovered %d keys from %d pairs", recovered, len(pairs))
	if recovered > 0 && exporter == nil {
		logger.Println("No --export file given; keys were discarded after verification.")
	}
}

func observationFromRecord(rec signatureRecord) (forensics.Observation, error) {
	r, s, err := forensics.ParseDERSignatureHex(rec.Sig)
	if err != nil {
		return forensics.Observation{}, err
	}
	obs := forensics.Observation{TxID: rec.TxID, Vin: rec.Vin, R: r, S: s}
	digest, err := hex.DecodeString(rec.Digest)
	if err != nil || len(digest) != 32 {
		return forensics.Observation{}, errors.New("digest must be 32 hex bytes")
	}
	copy(obs.Z[:], digest)
	if rec.PubKey != "" {
		pk, err := hex.DecodeString(rec.PubKey)
		if err != nil {
			return forensics.Observation{}, fmt.Errorf("pubkey: %w", err)
		}
		obs.PubKey = pk
	}
	return obs, nil
}

func setupLogging() {
	if cfg.LogFile != "" {
		// Log to file
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		logger = logpkg.NewWriter(file)
		logger.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		// Log to stdout
		logger = logpkg.New()
		logger.SetFlags(log.LstdFlags)
	}
}

func logInterval() time.Duration {
	return time.Duration(cfg.LogInterval) * time.Second
}

func fatal(err error) {
	logger.Printf("Error: %v", err)
	os.Exit(1)
}
