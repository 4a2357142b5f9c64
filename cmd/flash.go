// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/fead/pkg/config"
	"github.com/Thermoquad/fead/pkg/flash"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	flashReset      bool
	flashNoTUI      bool
	flashAckTimeout time.Duration
	flashBootDelay  time.Duration
)

var flashCmd = &cobra.Command{
	Use:   "flash <image>",
	Short: "Program firmware into devices in bootloader mode",
	Long: `Write a firmware image through the bus to every device in bootloader mode.

The image is an Intel HEX file (.hex, .ihex) or a raw binary. It is written in
128-byte pages starting at address 0. Every bootloader command must be
acknowledged within --ack-timeout (0 waits forever); a missing acknowledgement
aborts the session and names the failing page.

With --reset, all devices are first reset into their bootloader and the
command waits --boot-delay before programming.

Examples:
  fead flash firmware.hex --port /dev/ttyUSB0 --reset
  fead flash firmware.bin --no-tui --ack-timeout 5s

Exit codes:
  0 - Image written
  1 - Programming failed
  2 - Connection error`,
	Args: cobra.ExactArgs(1),
	RunE: runFlash,
}

func init() {
	rootCmd.AddCommand(flashCmd)
	flashCmd.Flags().BoolVar(&flashReset, "reset", false, "Reset all devices into the bootloader first")
	flashCmd.Flags().BoolVar(&flashNoTUI, "no-tui", false, "Print progress as text")
	flashCmd.Flags().DurationVar(&flashAckTimeout, "ack-timeout", flash.DefaultAckTimeout, "Acknowledgement timeout per command (0 waits forever)")
	flashCmd.Flags().DurationVar(&flashBootDelay, "boot-delay", flash.DefaultBootDelay, "Wait after --reset before programming")
}

func runFlash(cmd *cobra.Command, args []string) error {
	image, err := flash.LoadImage(args[0])
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("ack-timeout") {
		cfg.Flash.AckTimeout = config.Duration(flashAckTimeout)
	}
	if cmd.Flags().Changed("boot-delay") {
		cfg.Flash.BootDelay = config.Duration(flashBootDelay)
	}
	if cfg.Flash.AckTimeout < 0 || cfg.Flash.BootDelay < 0 {
		return fmt.Errorf("durations must not be negative")
	}

	ctx, cancel := commandContext()
	defer cancel()

	s := mustOpenSession(ctx)
	defer s.Close()

	fmt.Printf("fead - Firmware Flash\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Image: %s (%d bytes, %d pages)\n", args[0], len(image), flash.PageCount(len(image)))
	fmt.Printf("Ack timeout: %v\n\n", cfg.Flash.AckTimeout.Std())

	if flashNoTUI {
		err = runFlashText(ctx, s, image)
	} else {
		err = runFlashTUI(ctx, s, image)
	}

	if err != nil {
		fmt.Printf("\nFLASH FAILED: %v\n", err)
		var pageErr *flash.PageError
		if errors.As(err, &pageErr) {
			fmt.Printf("Failed at page %d (word address 0x%04X)\n", pageErr.Page, pageErr.WordAddress)
		}
		os.Exit(1)
	}
	fmt.Printf("\nFlash complete\n")
	return nil
}

// flashImage runs the sequence, resetting devices first when requested
func flashImage(ctx context.Context, s *session, image []byte, progress flash.ProgressCallback) error {
	opts := append(cfg.FlashOptions(),
		flash.WithLogger(logger),
		flash.WithProgressCallback(progress),
	)
	seq := flash.New(s.bus, opts...)
	if flashReset {
		return seq.FlashGroup(ctx, s.bus, image)
	}
	return seq.Flash(ctx, image)
}

// runFlashText prints one progress line per phase and every tenth of the image
func runFlashText(ctx context.Context, s *session, image []byte) error {
	lastPhase := ""
	lastDecile := -1
	return flashImage(ctx, s, image, func(p flash.Progress) {
		if p.Phase != lastPhase {
			lastPhase = p.Phase
			fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), p.Phase)
		}
		if p.Phase != flash.PhaseProgramming {
			return
		}
		if decile := int(p.Percentage / 10); decile != lastDecile || p.CurrentPage == p.TotalPages {
			lastDecile = decile
			fmt.Printf("  page %d/%d  %5.1f%%  %d bytes  %v\n",
				p.CurrentPage, p.TotalPages, p.Percentage, p.BytesWritten, p.ElapsedTime.Round(time.Millisecond))
		}
	})
}

// runFlashTUI shows a progress bar while flashing
func runFlashTUI(ctx context.Context, s *session, image []byte) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(initialFlashModel(cancel), tea.WithContext(ctx))

	result := make(chan error, 1)
	go func() {
		err := flashImage(ctx, s, image, func(progress flash.Progress) {
			p.Send(flashProgressMsg(progress))
		})
		result <- err
		p.Send(flashDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %v", err)
	}
	cancel()
	return <-result
}
