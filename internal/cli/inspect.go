package cli

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/limbwalk/internal/checkpoint"
	"github.com/roach88/limbwalk/internal/fixmod"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Verify bool
}

// InspectResult describes a checkpoint file.
type InspectResult struct {
	Path       string `json:"path"`
	Version    uint16 `json:"version"`
	Step       uint64 `json:"step"`
	Counter    int64  `json:"counter"`
	Group      int    `json:"group"`
	Limbs      uint64 `json:"limbs"`
	Bits       uint64 `json:"bits"`
	Exact      bool   `json:"exact"` // Bits is exact rather than estimated from the limb count
	Compressed bool   `json:"compressed"`
	FileBytes  int64  `json:"file_bytes"`
	Verified   bool   `json:"verified"`
}

func (r InspectResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Checkpoint: %s (v%d, %d bytes)\n", r.Path, r.Version, r.FileBytes)
	fmt.Fprintf(&b, "  Step:       %d\n", r.Step)
	fmt.Fprintf(&b, "  Counter:    %d\n", r.Counter)
	fmt.Fprintf(&b, "  Group:      %d limbs\n", r.Group)
	fmt.Fprintf(&b, "  Limbs:      %d\n", r.Limbs)
	if r.Exact {
		fmt.Fprintf(&b, "  Bits:       %d\n", r.Bits)
	} else {
		fmt.Fprintf(&b, "  Bits:       ~%d\n", r.Bits)
	}
	fmt.Fprintf(&b, "  Compressed: %t\n", r.Compressed)
	if r.Verified {
		b.WriteString("  Checksum:   ok")
	} else {
		b.WriteString("  Checksum:   not verified (use --verify)")
	}
	return b.String()
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <checkpoint>",
		Short: "Summarize a checkpoint file",
		Long: `Print the header of a checkpoint file.

With --verify the whole file is decoded, the checksum is checked, and the
bit length of the stored value is computed exactly.

Examples:
  limbwalk inspect state.ckpt
  limbwalk inspect state.ckpt --verify --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "decode the full file and verify its checksum")

	return cmd
}

func runInspect(opts *InspectOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	h, size, err := checkpoint.Inspect(path)
	if err != nil {
		_ = formatter.Error(ErrCodeBadCheckpoint, "cannot read checkpoint", err.Error())
		return WrapExitError(ExitCommandError, "failed to inspect checkpoint", err)
	}

	result := InspectResult{
		Path:       path,
		Version:    h.Version,
		Step:       h.Step,
		Counter:    h.Counter,
		Group:      h.Group,
		Limbs:      h.LimbCount,
		Bits:       uint64(math.Ceil(float64(h.LimbCount) * math.Log2(float64(fixmod.M)))),
		Compressed: h.Compressed(),
		FileBytes:  size,
	}

	if opts.Verify {
		formatter.VerboseLog("decoding %s", path)
		rec, err := checkpoint.Restore(path)
		if err != nil {
			_ = formatter.Error(ErrCodeBadCheckpoint, "checkpoint failed verification", err.Error())
			return WrapExitError(ExitCommandError, "failed to verify checkpoint", err)
		}
		s, err := rec.Store()
		if err != nil {
			_ = formatter.Error(ErrCodeBadCheckpoint, "checkpoint failed verification", err.Error())
			return WrapExitError(ExitCommandError, "failed to verify checkpoint", err)
		}
		result.Bits = uint64(s.Value().BitLen())
		result.Exact = true
		result.Verified = true
	}

	return formatter.Success(result)
}
