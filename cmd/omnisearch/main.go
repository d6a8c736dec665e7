package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"

	internal "github.com/ZanzyTHEbar/omnisearch/omni"
	"github.com/ZanzyTHEbar/omnisearch/omni/config"
	"github.com/ZanzyTHEbar/omnisearch/omni/core"
)

var (
	configPath  string
	drive       string
	includeDirs bool
	allDrives   bool
	appCore     *core.Core
)

func main() {
	logger := internal.GetLogger()

	rootCmd := &cobra.Command{
		Use:   internal.DefaultAppCMDShortCut,
		Short: "NTFS filesystem indexer and duplicate finder",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			appCore = core.New(core.WithConfig(cfg))
			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&drive, "drive", internal.DefaultDrive, "drive letter to index")
	rootCmd.PersistentFlags().BoolVar(&includeDirs, "dirs", false, "include directories in the index")
	rootCmd.PersistentFlags().BoolVar(&allDrives, "all", false, "scan every NTFS volume")

	rootCmd.AddCommand(drivesCmd(), indexCmd(), searchCmd(), dupesCmd(), scanCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// ensureIndexed builds the index synchronously; the CLI process holds the
// index only for its own lifetime.
func ensureIndexed() error {
	if appCore.IsIndexReady() {
		return nil
	}
	appCore.StartIndexing(drive, includeDirs, allDrives)
	for appCore.IsIndexing() {
		time.Sleep(200 * time.Millisecond)
	}
	status := appCore.Status()
	if !status.Ready {
		return fmt.Errorf("indexing failed: %s", status.LastError)
	}
	return nil
}

func drivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drives",
		Short: "List logical drives",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(appCore.ListDrivesJSON())
			return nil
		},
	}
}

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Build the in-memory index from the volume MFT",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureIndexed(); err != nil {
				return err
			}
			fmt.Printf("indexed %d entries\n", appCore.IndexedFileCount())
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	var extension string
	var minSize, maxSize uint64
	var minCreated, maxCreated int64
	var limit int
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureIndexed(); err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			fmt.Println(appCore.SearchFilesJSON(query, extension, minSize, maxSize, minCreated, maxCreated, limit))
			return nil
		},
	}
	cmd.Flags().StringVar(&extension, "ext", "", "extension filter (or folder/dir for directories)")
	cmd.Flags().Uint64Var(&minSize, "min-size", 0, "minimum file size in bytes")
	cmd.Flags().Uint64Var(&maxSize, "max-size", math.MaxUint64, "maximum file size in bytes")
	cmd.Flags().Int64Var(&minCreated, "min-created", math.MinInt64, "minimum creation time (unix seconds)")
	cmd.Flags().Int64Var(&maxCreated, "max-created", math.MaxInt64, "maximum creation time (unix seconds)")
	cmd.Flags().IntVar(&limit, "limit", 0, "result limit (0 = 200)")
	return cmd
}

func dupesCmd() *cobra.Command {
	var minSize uint64
	var maxGroups, maxFiles int
	cmd := &cobra.Command{
		Use:   "dupes",
		Short: "Find duplicate files across the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureIndexed(); err != nil {
				return err
			}
			out, ok := appCore.FindDuplicatesJSON(minSize, maxGroups, maxFiles)
			if !ok {
				return fmt.Errorf("%s", appCore.LastError())
			}
			fmt.Println(out)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&minSize, "min-size", 0, "minimum file size in bytes (0 = 1 MiB)")
	cmd.Flags().IntVar(&maxGroups, "max-groups", 200, "maximum groups to report")
	cmd.Flags().IntVar(&maxFiles, "max-files", 50, "maximum files rendered per group")
	return cmd
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "One-shot MFT scan printing the basic file listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, ok := appCore.ScanMFTJSON(drive)
			if !ok {
				return fmt.Errorf("%s", appCore.LastError())
			}
			fmt.Println(out)
			return nil
		},
	}
}
