package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"shard/pkg/inventory"
	"shard/pkg/reconstruct"

	"github.com/spf13/cobra"
)

// resolveInventoryPath accepts either an inventory file or any chunk
// artifact and resolves the inventory location.
func resolveInventoryPath(arg string) (string, error) {
	path, err := filepath.Abs(arg)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(path, ".json") {
		return path, nil
	}
	invPath, _, err := inventory.Locate(path)
	return invPath, err
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <inventory-or-chunk>",
		Short: "Show chunking progress for an inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invPath, err := resolveInventoryPath(args[0])
			if err != nil {
				return err
			}
			inv, err := inventory.Load(invPath)
			if err != nil {
				return err
			}

			// Shallow artifact audit: presence and size only, no hashing.
			plan, err := reconstruct.New(nil).PlanInventory(invPath, false)
			if err != nil {
				return err
			}

			fmt.Println(renderInventoryStatus(invPath, inv, plan))
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	var shallow bool

	cmd := &cobra.Command{
		Use:   "verify <inventory-or-chunk>",
		Short: "Audit an inventory and its chunk artifacts",
		Long: `Checks the inventory's structural integrity, then audits every chunk
artifact beside it: present, correctly sized and, unless --shallow is
given, matching its recorded hash. Nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invPath, err := resolveInventoryPath(args[0])
			if err != nil {
				return err
			}
			inv, err := inventory.Load(invPath)
			if err != nil {
				return err
			}

			issues := inv.Verify()

			logger := setupLogger(verbose, "")
			defer logger.Sync()

			plan, err := reconstruct.New(logger).PlanInventory(invPath, !shallow)
			if err != nil {
				return err
			}

			fmt.Println(renderVerifyReport(inv, issues, plan))

			if len(issues) > 0 || !plan.Complete() {
				return fmt.Errorf("verification found %d inventory issues and %d chunk problems",
					len(issues), len(plan.Problems))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&shallow, "shallow", false, "skip per-chunk hash checks")
	return cmd
}

func mergeCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "merge <inventory>...",
		Short: "Merge partial inventories for the same file",
		Long: `Combines inventories produced by separate chunking passes over the same
original file (for example on different machines), keeping every completed
chunk record. All inputs must describe the same original.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			merged, err := inventory.Merge(args)
			if err != nil {
				return err
			}
			if err := merged.Save(outPath); err != nil {
				return err
			}

			fmt.Printf("Merged %d inventories into %s (%d/%d chunks completed)\n",
				len(args), outPath, merged.ChunkStatus.TotalProcessed, merged.TotalChunks)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "path for the merged inventory")
	cmd.MarkFlagRequired("out")
	return cmd
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <inventory>",
		Short: "Create a timestamped backup of an inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backupPath, err := inventory.Backup(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Backup written to %s\n", backupPath)
			return nil
		},
	}
}
