package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/rcxfile"
)

// resetFlags puts every flag of c and its subcommands back to its default
// so that runs do not leak into each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runRCX executes the root command with args and returns what it printed.
func runRCX(t *testing.T, args []string) (string, error) {
	t.Helper()

	// Capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		buf.ReadFrom(r)
		close(done)
	}()

	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	w.Close()
	os.Stdout = old
	<-done
	return buf.String(), err
}

// TestTreeE2E tests the tree command end-to-end
func TestTreeE2E(t *testing.T) {
	tagDir := t.TempDir()

	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
	}{
		{
			name: "net by name",
			args: []string{"tree", "testdata/design.rcx", "--net", "clk_a"},
			wantContain: []string{
				"extTnodes of Net 1:",
				"termMap= 1, junctionId= 500,",
				"R_1= 12",
				"NetId 1 has 5 nodes",
			},
		},
		{
			name: "net by id with pool graph",
			args: []string{"tree", "testdata/design.rcx", "--net", "1", "--pool"},
			wantContain: []string{
				"Node graph ---",
				"NetId 1 has 5 nodes",
			},
		},
		{
			name: "print tag",
			args: []string{"tree", "testdata/design.rcx", "-n", "clk_a", "--print-tag", "golden", "--debug-dir", tagDir},
			wantContain: []string{
				"NetId 1 has 5 nodes",
			},
		},
		{
			name: "spef input",
			args: []string{"tree", "testdata/design.spef", "--net", "net_a"},
			wantContain: []string{
				"termMap= -1,",
				"has 5 nodes",
			},
		},
		{
			name:    "unknown net",
			args:    []string{"tree", "testdata/design.rcx", "--net", "nope"},
			wantErr: true,
		},
		{
			name:    "net without segments",
			args:    []string{"tree", "testdata/design.rcx", "--net", "open_net"},
			wantErr: true,
		},
		{
			name:    "missing net flag",
			args:    []string{"tree", "testdata/design.rcx"},
			wantErr: true,
		},
		{
			name:    "missing file",
			args:    []string{"tree", "testdata/missing.rcx", "--net", "1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := runRCX(t, tt.args)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v\nOutput: %s", err, output)
				return
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
		})
	}

	if _, err := os.Stat(filepath.Join(tagDir, "golden_net1_tnode")); err != nil {
		t.Errorf("Expected tnode dump: %v", err)
	}
}

// TestBatchE2E tests the batch command end-to-end
func TestBatchE2E(t *testing.T) {
	out := filepath.Join(t.TempDir(), "trees.txt")

	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
		wantMissing []string
	}{
		{
			name: "native design",
			args: []string{"batch", "testdata/design.rcx"},
			wantContain: []string{
				"Built 1 trees (5 nodes), skipped 1 supply nets, 1 failed",
			},
			wantMissing: []string{"net 3:"},
		},
		{
			name: "verbose lists unrouted nets",
			args: []string{"batch", "testdata/design.rcx", "-v"},
			wantContain: []string{
				"Built 1 trees",
				"net 3:",
				"no RC segments",
			},
		},
		{
			name: "spef design",
			args: []string{"batch", "testdata/design.spef"},
			wantContain: []string{
				"Built 1 trees (5 nodes)",
			},
		},
		{
			name: "trees to file",
			args: []string{"batch", "testdata/design.rcx", "--output", out},
			wantContain: []string{
				"Built 1 trees",
			},
			wantMissing: []string{"extTnodes"},
		},
		{
			name:    "bad config",
			args:    []string{"batch", "testdata/design.rcx", "--config", "testdata/missing.yaml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := runRCX(t, tt.args)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v\nOutput: %s", err, output)
				return
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
			for _, miss := range tt.wantMissing {
				if strings.Contains(output, miss) {
					t.Errorf("Output has unexpected string: %q\nGot:\n%s", miss, output)
				}
			}
		})
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Failed to read batch output: %v", err)
	}
	if !strings.Contains(string(data), "NetId 1 has 5 nodes") {
		t.Errorf("Batch output file missing tree of net 1:\n%s", data)
	}
}

// TestCheckE2E tests the check command end-to-end
func TestCheckE2E(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
	}{
		{
			name: "all trees",
			args: []string{"check", "testdata/design.rcx", "-v"},
			wantContain: []string{
				"ok    clk_a",
				"SKIP  open_net",
				"1 trees, 0 not trees, 1 skipped",
			},
		},
		{
			name: "spef",
			args: []string{"check", "testdata/design.spef"},
			wantContain: []string{
				"1 trees, 0 not trees",
			},
		},
		{
			name:    "routing not connected",
			args:    []string{"check", "testdata/orphan.rcx"},
			wantErr: true,
			wantContain: []string{
				"FAIL  orphan",
				"0 trees, 1 not trees, 0 skipped",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := runRCX(t, tt.args)

			if tt.wantErr && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v\nOutput: %s", err, output)
				return
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
		})
	}
}

// TestPremergeE2E tests the premerge command end-to-end
func TestPremergeE2E(t *testing.T) {
	dir := t.TempDir()

	t.Run("native design", func(t *testing.T) {
		out := filepath.Join(dir, "merged.rcx")
		output, err := runRCX(t, []string{"premerge", "testdata/design.rcx", "-o", out})
		if err != nil {
			t.Fatalf("Unexpected error: %v\nOutput: %s", err, output)
		}
		if !strings.Contains(output, "Merged away 0 segments") {
			t.Errorf("Unexpected output:\n%s", output)
		}

		db, err := rcxfile.LoadFile(out)
		if err != nil {
			t.Fatalf("Failed to load merged file: %v", err)
		}
		ctrl := db.Control()
		if !ctrl.PreMerged || ctrl.PreMergeCap != 10 {
			t.Errorf("Expected pre-merged block at cap 10, got %+v", ctrl)
		}
	})

	t.Run("corner block", func(t *testing.T) {
		out := filepath.Join(dir, "corner.rcx")
		output, err := runRCX(t, []string{"premerge", "testdata/corners.rcx", "--corner", "1", "-o", out})
		if err != nil {
			t.Fatalf("Unexpected error: %v\nOutput: %s", err, output)
		}
		if !strings.Contains(output, "Merged away 1 segments") {
			t.Errorf("Unexpected output:\n%s", output)
		}

		db, err := rcxfile.LoadFile(out)
		if err != nil {
			t.Fatalf("Failed to load merged file: %v", err)
		}
		if db.Control().PreMerged {
			t.Errorf("Top block should be left alone")
		}
		blk := db.CornerBlock(1)
		if !blk.Control().PreMerged {
			t.Errorf("Corner block 1 should be pre-merged")
		}
		net, ok := blk.Net(1)
		if !ok {
			t.Fatalf("Corner block lost net 1")
		}
		if got := len(net.RSegs()); got != 1 {
			t.Errorf("Expected 1 segment in corner block, got %d", got)
		}
		top, _ := db.Net(1)
		if got := len(top.RSegs()); got != 2 {
			t.Errorf("Expected 2 segments in top block, got %d", got)
		}
	})

	t.Run("missing output", func(t *testing.T) {
		if _, err := runRCX(t, []string{"premerge", "testdata/design.rcx"}); err == nil {
			t.Errorf("Expected error but got none")
		}
	})
}

func TestBuildConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rcx.yaml")
	data := "max_cap: 20\ncorner: 1\ndummy_junctions: false\nmiller_factor: 2\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		args      []string
		wantCap   float64
		wantCnr   int
		wantDummy bool
		wantMCF   float64
	}{
		{
			name:      "defaults",
			args:      nil,
			wantCap:   10,
			wantCnr:   0,
			wantDummy: true,
			wantMCF:   1,
		},
		{
			name:      "yaml only",
			args:      []string{"--config", path},
			wantCap:   20,
			wantCnr:   1,
			wantDummy: false,
			wantMCF:   2,
		},
		{
			name:      "flags over yaml",
			args:      []string{"--config", path, "--max-cap", "5", "--no-dummy=false"},
			wantCap:   5,
			wantCnr:   1,
			wantDummy: true,
			wantMCF:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(rootCmd)
			defer resetFlags(rootCmd)
			if err := rootCmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("ParseFlags() error: %v", err)
			}

			cfg, err := buildConfig(rootCmd)
			if err != nil {
				t.Fatalf("buildConfig() error: %v", err)
			}
			if cfg.MaxCap != tt.wantCap {
				t.Errorf("MaxCap = %g, want %g", cfg.MaxCap, tt.wantCap)
			}
			if cfg.Corner != tt.wantCnr {
				t.Errorf("Corner = %d, want %d", cfg.Corner, tt.wantCnr)
			}
			if cfg.DummyJunctions != tt.wantDummy {
				t.Errorf("DummyJunctions = %v, want %v", cfg.DummyJunctions, tt.wantDummy)
			}
			if cfg.MillerFactor != tt.wantMCF {
				t.Errorf("MillerFactor = %g, want %g", cfg.MillerFactor, tt.wantMCF)
			}
		})
	}
}

func TestFindNet(t *testing.T) {
	db, err := loadDesign("testdata/design.rcx")
	if err != nil {
		t.Fatalf("loadDesign() error: %v", err)
	}

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{ref: "1", want: "clk_a"},
		{ref: "2", want: "VDD"},
		{ref: "open_net", want: "open_net"},
		{ref: "99", wantErr: true},
		{ref: "nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			net, err := findNet(db, tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Errorf("findNet(%q) expected error, got %s", tt.ref, net.Name())
				}
				return
			}
			if err != nil {
				t.Fatalf("findNet(%q) unexpected error: %v", tt.ref, err)
			}
			if net.Name() != tt.want {
				t.Errorf("findNet(%q) = %s, want %s", tt.ref, net.Name(), tt.want)
			}
		})
	}
}
