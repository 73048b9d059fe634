package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shard/pkg/chunker"
	"shard/pkg/config"
	"shard/pkg/hasher"
	"shard/pkg/inventory"
	"shard/pkg/reconstruct"
	"shard/pkg/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shard",
		Short: "Fixed-size file chunking and reconstruction",
		Long: `Splits large files into fixed-size, independently hashed chunks with a
recoverable JSON inventory, and reassembles them with end-to-end integrity
verification. Individual chunks can be regenerated without redoing the rest.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		chunkCmd(),
		reconstructCmd(),
		statusCmd(),
		verifyCmd(),
		mergeCmd(),
		backupCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	if configFile != "" {
		cfg, err := config.LoadConfig(configFile)
		if err == nil {
			return cfg
		}
		fmt.Fprintf(os.Stderr, "Warning: %v, falling back to environment\n", err)
	}
	return config.LoadFromEnv()
}

func chunkCmd() *cobra.Command {
	var (
		sizeStr      string
		target       int
		outputDir    string
		logDir       string
		inventoryDir string
		algoName     string
	)

	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Split a file into hashed chunk artifacts",
		Long: `Splits the file into fixed-size chunks, each written once and hashed in
the same pass. Progress is persisted to the inventory after every chunk, so
an interrupted run can be repaired chunk by chunk with --chunk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			source, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			if sizeStr == "" {
				sizeStr = cfg.ChunkSize
			}
			chunkSize, err := utils.ParseDataSize(sizeStr)
			if err != nil {
				return fmt.Errorf("invalid chunk size: %w", err)
			}

			if algoName == "" {
				algoName = cfg.HashAlgorithm
			}
			algo, err := hasher.Parse(algoName)
			if err != nil {
				return err
			}

			if outputDir == "" {
				outputDir = cfg.OutputDir
			}
			if logDir == "" {
				logDir = cfg.LogDir
			}
			if inventoryDir == "" {
				inventoryDir = cfg.InventoryDir
			}

			base := filepath.Base(source)
			srcDir := filepath.Dir(source)
			stem := strings.TrimSuffix(base, filepath.Ext(base))

			if logDir == "" {
				logDir = srcDir
			}
			if err := os.MkdirAll(logDir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
			logPath := filepath.Join(logDir, stem+".log")

			var invPath string
			if inventoryDir != "" {
				if err := os.MkdirAll(inventoryDir, 0755); err != nil {
					return fmt.Errorf("failed to create inventory directory: %w", err)
				}
				invPath = inventory.PathFor(inventoryDir, base)
			}

			logger := setupLogger(verbose, logPath)
			defer logger.Sync()

			summary, err := chunker.New(logger).Chunk(source, chunker.Options{
				ChunkSize:     chunkSize,
				OutputDir:     outputDir,
				InventoryPath: invPath,
				TargetChunk:   target,
				Algorithm:     algo,
			})
			if summary != nil {
				fmt.Println(renderChunkSummary(summary))
			}
			if errors.Is(err, chunker.ErrChunkWriteFailed) {
				return fmt.Errorf("%w; re-run with --chunk <index> to regenerate", err)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&sizeStr, "size", "s", "", "chunk size, e.g. 1000MB, 1GB (default 1000MB)")
	cmd.Flags().IntVarP(&target, "chunk", "c", 0, "process only this chunk index")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for chunks (default: source directory)")
	cmd.Flags().StringVar(&logDir, "log-dir", "", "directory for the operation log (default: source directory)")
	cmd.Flags().StringVar(&inventoryDir, "inventory-dir", "", "directory for the inventory file (default: source directory)")
	cmd.Flags().StringVar(&algoName, "hash", "", "hash algorithm: xxh64, md5 or sha256")

	return cmd
}

func reconstructCmd() *cobra.Command {
	var (
		outputDir  string
		noValidate bool
	)

	cmd := &cobra.Command{
		Use:   "reconstruct <chunk-or-inventory>",
		Short: "Rebuild the original file from its chunks",
		Long: `Takes any one chunk artifact (or the inventory itself), locates the
sibling inventory and chunks, verifies everything needed is present, and
concatenates the chunks back into the original file. The rebuilt file's
whole-file hash is checked against the inventory unless --no-validate is
given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if outputDir == "" {
				outputDir = cfg.OutputDir
			}

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			logger := setupLogger(verbose, "")
			defer logger.Sync()

			r := reconstruct.New(logger)
			validate := !noValidate

			var result *reconstruct.Result
			if strings.HasSuffix(path, ".json") {
				result, err = r.ReconstructFromInventory(path, outputDir, validate)
			} else {
				result, err = r.Reconstruct(path, outputDir, validate)
			}
			if err != nil {
				var blocked *reconstruct.BlockedError
				if errors.As(err, &blocked) {
					fmt.Println(renderBlocked(blocked))
				}
				return err
			}

			fmt.Println(renderReconstructResult(result, validate))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for the reconstructed file (default: current directory)")
	cmd.Flags().BoolVar(&noValidate, "no-validate", false, "skip hash validation")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("shard v0.1.0")
		},
	}
}

// setupLogger builds the structured logger. When logPath is set, events are
// appended there as well, giving each source file its own operation log.
func setupLogger(verbose bool, logPath string) *zap.Logger {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if logPath != "" {
		config.OutputPaths = append(config.OutputPaths, logPath)
	}

	logger, _ := config.Build()
	return logger
}
