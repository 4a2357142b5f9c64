// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/fead/pkg/capture"
	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/spf13/cobra"
)

var (
	replaySession   string
	replaySince     string
	replayDirection string
	replayStats     bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Print a recorded capture file",
	Long: `Decode a capture file written with --capture and print its lines the
way monitor shows them.

--since accepts an RFC 3339 time or a duration counted back from now.

Examples:
  fead replay bus.cbor
  fead replay bus.cbor --direction rx --since 10m
  fead replay bus.cbor --session 1b4e28ba-2fa1-11d2-883f-0016d3cca427

Exit codes:
  0 - Capture printed
  1 - Capture unreadable`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVar(&replaySession, "session", "", "Only print this recording session")
	replayCmd.Flags().StringVar(&replaySince, "since", "", "Only print lines from this time on")
	replayCmd.Flags().StringVar(&replayDirection, "direction", "", "Only print rx or tx lines")
	replayCmd.Flags().BoolVar(&replayStats, "stats", false, "Print statistics after the lines")
}

// parseCaptureFilter builds a capture filter from the replay flags
func parseCaptureFilter(session, since, direction string, now time.Time) (capture.Filter, error) {
	filter := capture.Filter{Session: session}

	switch direction {
	case "":
	case "rx":
		d := fead.DirectionIn
		filter.Direction = &d
	case "tx":
		d := fead.DirectionOut
		filter.Direction = &d
	default:
		return filter, fmt.Errorf("invalid direction %q (use rx or tx)", direction)
	}

	if since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = &t
		} else if d, err := time.ParseDuration(since); err == nil {
			t := now.Add(-d)
			filter.Since = &t
		} else {
			return filter, fmt.Errorf("invalid --since %q", since)
		}
	}
	return filter, nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	filter, err := parseCaptureFilter(replaySession, replaySince, replayDirection, time.Now())
	if err != nil {
		return err
	}

	r, err := capture.Open(args[0], filter)
	if err != nil {
		return err
	}
	defer r.Close()

	stats := fead.NewStatistics()
	sessions := make(map[string]bool)
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if !sessions[ev.Session] {
			sessions[ev.Session] = true
			fmt.Printf("--- session %s ---\n", ev.Session)
		}
		stats.Observe(ev.Direction, ev.Line)
		fmt.Print(fead.FormatLine(ev.Timestamp, ev.Direction, ev.Line, params))
	}

	if replayStats {
		fmt.Println()
		fmt.Printf("--- %s statistics (%d sessions) ---\n", args[0], len(sessions))
		fmt.Print(stats)
	}
	return nil
}
