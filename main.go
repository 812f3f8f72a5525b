package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"imagededup/config"
	"imagededup/database"
	"imagededup/logging"
	"imagededup/scanner"
	"imagededup/signalhandler"
	"imagededup/utils"
)

var (
	flagConfig     string
	flagCheckpoint string
	flagNoCache    bool
	flagDebug      bool
	flagLogFile    string
	flagWorkers    int

	flagOutput      string
	flagCSV         string
	flagDisposition string
	flagInclude     []string
	flagExclude     []string
)

func main() {
	root := &cobra.Command{
		Use:           "imagededup",
		Short:         "Detect duplicate and near-duplicate images and plan a safe cleanup",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to TOML config file")
	root.PersistentFlags().StringVar(&flagCheckpoint, "checkpoint", "", "path to checkpoint database")
	root.PersistentFlags().BoolVar(&flagNoCache, "no-checkpoint", false, "disable the checkpoint store, re-hash everything")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVar(&flagLogFile, "logfile", "", "log file path")
	root.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "fingerprint worker count (0 = auto)")

	scanCmd := &cobra.Command{
		Use:   "scan <folder>",
		Short: "Fingerprint a folder and refresh the checkpoint database",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}

	planCmd := &cobra.Command{
		Use:   "plan <folder>",
		Short: "Detect duplicates and write a reviewable action plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlan,
	}
	planCmd.Flags().StringVar(&flagOutput, "output", "", "write the plan document (JSON) to this path")
	planCmd.Flags().StringVar(&flagCSV, "csv", "", "write the per-action manifest (CSV) to this path")
	planCmd.Flags().StringVar(&flagDisposition, "disposition", "", "disposition for duplicates: move-to-review, delete or link")
	planCmd.Flags().StringSliceVar(&flagInclude, "include", nil, "only consider paths containing one of these substrings")
	planCmd.Flags().StringSliceVar(&flagExclude, "exclude", nil, "skip paths containing one of these substrings")
	scanCmd.Flags().StringSliceVar(&flagInclude, "include", nil, "only consider paths containing one of these substrings")
	scanCmd.Flags().StringSliceVar(&flagExclude, "exclude", nil, "skip paths containing one of these substrings")

	root.AddCommand(scanCmd, planCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads and validates configuration, wires logging and verifies the
// target folder. Config errors are fatal here, before any file is touched.
func setup(folder string) (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	if flagDebug {
		cfg.Debug = true
	}
	if flagLogFile != "" {
		cfg.LogFile = flagLogFile
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}
	if flagCheckpoint != "" {
		cfg.CheckpointPath = flagCheckpoint
	}
	if cfg.CheckpointPath == "" {
		cfg.CheckpointPath = utils.DefaultCheckpointPath()
	}
	if flagDisposition != "" {
		cfg.Disposition = flagDisposition
	}
	if len(flagInclude) > 0 {
		cfg.Include = flagInclude
	}
	if len(flagExclude) > 0 {
		cfg.Exclude = flagExclude
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	if err := logging.SetupLogger(cfg.LogFile, cfg.Debug); err != nil {
		fmt.Printf("Warning: failed to setup logging: %v\n", err)
	}

	info, err := os.Stat(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("folder path does not exist: %s", folder)
		}
		return cfg, fmt.Errorf("cannot access folder path: %s (%v)", folder, err)
	}
	if !info.IsDir() {
		return cfg, fmt.Errorf("path is not a directory: %s", folder)
	}
	return cfg, nil
}

// openCheckpoint opens the checkpoint store with the retry loop the sqlite
// layer occasionally needs on network filesystems.
func openCheckpoint(path string) (*database.Checkpoint, error) {
	const maxRetries = 3
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		cp, err := database.Open(path)
		if err == nil {
			return cp, nil
		}
		lastErr = err
		logging.LogWarning("error opening checkpoint (attempt %d/%d): %v", i+1, maxRetries, err)
		time.Sleep(time.Second * time.Duration(i+1))
	}
	return nil, fmt.Errorf("error opening checkpoint after %d attempts: %w", maxRetries, lastErr)
}

func runScan(cmd *cobra.Command, args []string) error {
	folder := args[0]
	cfg, err := setup(folder)
	if err != nil {
		return err
	}
	defer logging.CloseLogger()

	ctx, cancel := signalhandler.WithCancel(context.Background())
	defer cancel()

	checkpoint, err := openCheckpoint(cfg.CheckpointPath)
	if err != nil {
		return err
	}
	defer checkpoint.Close()

	fmt.Println("Starting image fingerprinting...")
	startTime := time.Now()

	_, summary, err := scanner.CollectRecords(ctx, scanner.ScanOptions{
		FolderPath: folder,
		Config:     cfg,
		Checkpoint: checkpoint,
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Printf("\nScan completed in %v.\n", time.Since(startTime).Round(time.Second))
	printScanSummary(summary)

	if total, unique, err := checkpoint.Stats(); err == nil {
		fmt.Printf("Checkpoint now holds %d fingerprints (%d unique contents).\n", total, unique)
	}
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	folder := args[0]
	cfg, err := setup(folder)
	if err != nil {
		return err
	}
	defer logging.CloseLogger()

	ctx, cancel := signalhandler.WithCancel(context.Background())
	defer cancel()

	var checkpoint *database.Checkpoint
	if !flagNoCache {
		checkpoint, err = openCheckpoint(cfg.CheckpointPath)
		if err != nil {
			return err
		}
		defer checkpoint.Close()
	}

	fmt.Println("Detecting duplicate images...")
	startTime := time.Now()

	result, err := scanner.RunPipeline(ctx, scanner.ScanOptions{
		FolderPath: folder,
		Config:     cfg,
		Checkpoint: checkpoint,
	})
	if err != nil {
		return fmt.Errorf("plan failed: %w", err)
	}

	fmt.Printf("\nAnalysis completed in %v.\n", time.Since(startTime).Round(time.Second))
	printScanSummary(result.Summary)

	fmt.Println(result.Plan.RenderSummary())

	if flagOutput != "" {
		if err := result.Plan.SaveJSON(flagOutput); err != nil {
			return err
		}
		fmt.Printf("Plan written to: %s\n", flagOutput)
	}
	if flagCSV != "" {
		if err := result.Plan.SaveCSV(flagCSV); err != nil {
			return err
		}
		fmt.Printf("Manifest written to: %s\n", flagCSV)
	}
	return nil
}

// printScanSummary lists the per-file outcome counts and every skipped file,
// so nothing disappears from the corpus unnoticed.
func printScanSummary(s *scanner.Summary) {
	fmt.Printf("Processed %d/%d files (%d from checkpoint).\n",
		s.Processed, s.TotalCandidates, s.FromCheckpoint)
	if s.MetadataErrors > 0 {
		fmt.Printf("Files with unreadable metadata: %d (kept, compared without EXIF).\n", s.MetadataErrors)
	}
	if len(s.Skipped) == 0 {
		return
	}

	fmt.Printf("Skipped %d file(s): %d decode error(s), %d I/O error(s).\n",
		len(s.Skipped), s.DecodeErrors, s.IOErrors)
	const maxListed = 20
	for i, sk := range s.Skipped {
		if i == maxListed {
			fmt.Printf("  ...and %d more (see log file)\n", len(s.Skipped)-maxListed)
			break
		}
		fmt.Printf("  %s: %s\n", sk.Path, sk.Reason)
	}
}
