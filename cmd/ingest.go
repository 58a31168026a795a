package cmd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/ars/internal/review"
)

// maxEventLine bounds a single NDJSON line.
const maxEventLine = 1 << 20

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Apply newline-delimited JSON review events (stdin when no file or \"-\")",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open events: %w", err)
			}
			defer f.Close()
			in = f
		}

		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		sum, err := ingest(cmd.Context(), e, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d, replayed %d, rejected %d, conflicted %d\n",
			sum.applied, sum.replayed, sum.rejected, sum.conflicted)
		if strict, _ := cmd.Flags().GetBool("strict"); strict && sum.rejected+sum.conflicted > 0 {
			return fmt.Errorf("%d events not applied", sum.rejected+sum.conflicted)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().Bool("strict", false, "Exit non-zero if any event was rejected or conflicted")
}

type ingestSummary struct {
	applied, replayed, rejected, conflicted int
}

// ingest processes events line by line. Bad lines and conflicts are logged
// and counted; any other error stops the run.
func ingest(ctx context.Context, e *env, r io.Reader) (ingestSummary, error) {
	var sum ingestSummary
	p := e.processor()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		ev, err := review.DecodeEvent(raw)
		if err != nil {
			e.logger.Warn("event rejected", "line", line, "error", err)
			sum.rejected++
			continue
		}

		res, err := p.Process(ctx, ev)
		switch {
		case err == nil && res.Replayed:
			sum.replayed++
		case err == nil:
			sum.applied++
		case errors.Is(err, review.ErrInvalidInput):
			e.logger.Warn("event rejected", "line", line, "error", err)
			sum.rejected++
		case errors.Is(err, review.ErrConflict):
			e.logger.Warn("event conflicted", "line", line, "error", err)
			sum.conflicted++
		default:
			return sum, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return sum, fmt.Errorf("read events: %w", err)
	}
	return sum, nil
}
