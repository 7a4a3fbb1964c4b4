package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/parasitics"
	"github.com/OpenTraceLab/OpenTraceRCX/pkg/rcxfile"
	"github.com/OpenTraceLab/OpenTraceRCX/pkg/rctree"
	"github.com/OpenTraceLab/OpenTraceRCX/pkg/spef"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Tree build flags shared by the commands
	maxCap       float64
	corner       int
	millerFactor float64
	noDummy      bool
	forBuffering bool
	preMerge     bool
	testLevel    int
	debugDir     string
)

var rootCmd = &cobra.Command{
	Use:   "rcx",
	Short: "OpenTraceRCX - RC tree extraction and reduction",
	Long: `OpenTraceRCX (rcx) builds per-net RC trees from extracted parasitics.

Input is either the native s-expression format (.rcx) or SPEF (.spef).

Examples:
  rcx tree design.rcx --net clk_a           # Print the tree of one net
  rcx batch design.spef --max-cap 20        # Build every signal net
  rcx check design.rcx                      # Report nets that are not trees
  rcx premerge design.rcx -o merged.rcx     # Merge segment runs ahead of time`,
	Version: "0.9.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML build configuration")

	flags := rootCmd.PersistentFlags()
	flags.Float64Var(&maxCap, "max-cap", rctree.DefaultMaxCap, "capacitance limit for merging segments")
	flags.IntVar(&corner, "corner", 0, "extraction corner for the capacitance limit")
	flags.Float64Var(&millerFactor, "mcf", 1, "coupling capacitance multiplier")
	flags.BoolVar(&noDummy, "no-dummy", false, "do not insert zero-valued junctions")
	flags.BoolVar(&forBuffering, "for-buffering", false, "require coordinates on SPEF input")
	flags.BoolVar(&preMerge, "pre-merge", false, "merge segment runs in the database first")
	flags.IntVar(&testLevel, "test", 0, "debug level (>1 writes <netid>.flow.dbg and <netid>.node.dbg)")
	flags.StringVar(&debugDir, "debug-dir", "", "directory for debug dumps")
}

// newLogger returns a development logger with --verbose, otherwise a
// production logger that only reports warnings.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// buildConfig loads --config, then applies the flags set on the command line.
func buildConfig(cmd *cobra.Command) (*rctree.Config, error) {
	cfg := rctree.DefaultConfig()
	if configPath != "" {
		loaded, err := rctree.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("max-cap") {
		cfg.MaxCap = maxCap
	}
	if changed("corner") {
		cfg.Corner = corner
	}
	if changed("mcf") {
		cfg.MillerFactor = millerFactor
	}
	if changed("no-dummy") {
		cfg.DummyJunctions = !noDummy
	}
	if changed("for-buffering") {
		cfg.ForBuffering = forBuffering
	}
	if changed("pre-merge") {
		cfg.PreMerge = preMerge
	}
	if changed("test") {
		cfg.Test = testLevel
	}
	if changed("debug-dir") {
		cfg.DebugDir = debugDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDesign reads a .spef file with the SPEF reader and anything else as
// the native format.
func loadDesign(path string) (*parasitics.MemoryDB, error) {
	if verbose {
		fmt.Printf("Loading parasitics from: %s\n", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spef", ".spf":
		return spef.LoadFile(path)
	default:
		return rcxfile.LoadFile(path)
	}
}

// findNet resolves a net given by id or by name.
func findNet(db *parasitics.MemoryDB, ref string) (parasitics.Net, error) {
	if id, err := strconv.ParseUint(ref, 10, 32); err == nil {
		if n, ok := db.Net(uint32(id)); ok {
			return n, nil
		}
	}
	if n, ok := db.NetByName(ref); ok {
		return n, nil
	}
	return nil, fmt.Errorf("net %q not found", ref)
}
