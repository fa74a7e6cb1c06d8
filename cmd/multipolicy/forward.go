package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cartridge/multipolicy/internal/metrics"
	"github.com/cartridge/multipolicy/internal/module"
	"github.com/cartridge/multipolicy/internal/registry"
)

type forwardOptions struct {
	input string
	mode  string
}

func newForwardCmd(load configLoader) *cobra.Command {
	var opts forwardOptions
	cmd := &cobra.Command{
		Use:   "forward",
		Short: "Run a single forward pass over a JSON batch",
		Long: `Reads a batch of the form {"p0": {"obs": [[...], ...]}, ...} and
prints the per-policy outputs as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForward(cmd, load, opts)
		},
	}
	cmd.Flags().StringVar(&opts.input, "input", "-", "Batch file (- for stdin)")
	cmd.Flags().StringVar(&opts.mode, "mode", module.ModeInference.String(), "Forward mode (inference, exploration, train)")
	return cmd
}

func runForward(cmd *cobra.Command, load configLoader, opts forwardOptions) error {
	mode, err := module.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	cfg, logger, err := load()
	if err != nil {
		return err
	}
	router, err := registry.Build(cfg, logger)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if opts.input != "-" {
		f, err := os.Open(opts.input)
		if err != nil {
			return fmt.Errorf("open batch: %w", err)
		}
		defer f.Close()
		in = f
	}
	batch, err := readBatch(in)
	if err != nil {
		return err
	}

	start := time.Now()
	out, err := router.Forward(cmd.Context(), mode, batch)
	metrics.NewCollector(logger).ForwardPass(mode.String(), len(batch), time.Since(start), err)
	if err != nil {
		return err
	}
	return writeBatch(cmd.OutOrStdout(), out)
}

func readBatch(r io.Reader) (map[string]module.Batch, error) {
	var raw map[string]map[string]module.Rows
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return module.DecodeBatches(raw)
}

func writeBatch(w io.Writer, out map[string]module.Batch) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(module.EncodeBatches(out))
}
