// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package flash

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/rs/zerolog"
)

// Exchanger sends one line through the bus queue and returns the first line
// received after it. *fead.Bus implements it.
type Exchanger interface {
	Exchange(ctx context.Context, line string, timeout time.Duration) (string, error)
}

// Holder reserves the bus for a whole session. *fead.Bus implements it.
type Holder interface {
	Hold(ctx context.Context, fn func(fead.Exchanger) error) error
}

// Resetter sends every device on the bus into its bootloader.
type Resetter interface {
	ResetAll(ctx context.Context) error
}

var (
	_ Exchanger = (*fead.Bus)(nil)
	_ Holder    = (*fead.Bus)(nil)
	_ Resetter  = (*fead.Bus)(nil)
)

// Sequencer runs the bootloader programming sequence over a bus.
//
// When the bus is a Holder, a session takes one queue slot from GET_SYNC to
// LEAVE_PROGMODE and no other traffic runs in between. Otherwise every
// command is queued on its own.
type Sequencer struct {
	bus    Exchanger
	config Config
	log    zerolog.Logger
}

// New creates a Sequencer sending commands through bus.
//
// Example:
//
//	image, _ := flash.LoadImage("firmware.hex")
//	seq := flash.New(bus, flash.WithProgressCallback(progressFunc))
//	err := seq.Flash(ctx, image)
func New(bus Exchanger, opts ...Option) *Sequencer {
	if bus == nil {
		panic("bus cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Sequencer{
		bus:    bus,
		config: cfg,
		log:    cfg.Logger.With().Str("component", "flash").Logger(),
	}
}

// Config returns the effective configuration.
func (s *Sequencer) Config() Config {
	return s.config
}

// Flash programs image starting at word address 0:
//  1. GET_SYNC, then wait for the bootloader to settle
//  2. LOAD_ADDRESS and PROG_PAGE for each 128-byte page; the last page may
//     be short
//  3. LEAVE_PROGMODE
//
// A command that is not acknowledged aborts the session. Commands are never
// resent, since a repeated PROG_PAGE would be written twice.
func (s *Sequencer) Flash(ctx context.Context, image []byte) error {
	if len(image) == 0 {
		return ErrEmptyImage
	}
	if len(image) > MaxImageSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrImageTooLarge, len(image), MaxImageSize)
	}

	if h, ok := s.bus.(Holder); ok {
		return h.Hold(ctx, func(ex fead.Exchanger) error {
			return s.run(ctx, ex, image)
		})
	}
	return s.run(ctx, s.bus, image)
}

func (s *Sequencer) run(ctx context.Context, ex Exchanger, image []byte) error {
	start := time.Now()
	total := PageCount(len(image))

	s.reportProgress(Progress{Phase: PhaseSync, TotalPages: total})
	if err := s.command(ctx, ex, CmdGetSync); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := sleep(ctx, s.config.SyncSettle); err != nil {
		return err
	}

	written := 0
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		end := min((i+1)*PageSize, len(image))
		page := image[i*PageSize : end]
		addr := PageWordAddress(i)

		if err := s.command(ctx, ex, CmdLoadAddress, LoadAddress(addr)...); err != nil {
			return &PageError{Page: i, WordAddress: addr, Err: err}
		}
		if err := s.command(ctx, ex, CmdProgPage, ProgPage(page)...); err != nil {
			return &PageError{Page: i, WordAddress: addr, Err: err}
		}
		written += len(page)

		// Programming spans 0% to 95%
		s.reportProgress(Progress{
			Phase:        PhaseProgramming,
			CurrentPage:  i + 1,
			TotalPages:   total,
			Percentage:   float64(i+1) / float64(total) * 95,
			BytesWritten: written,
			ElapsedTime:  time.Since(start),
		})
	}

	s.reportProgress(Progress{
		Phase:        PhaseLeaving,
		CurrentPage:  total,
		TotalPages:   total,
		Percentage:   95,
		BytesWritten: written,
		ElapsedTime:  time.Since(start),
	})
	if err := s.command(ctx, ex, CmdLeaveProgmode); err != nil {
		return fmt.Errorf("leave progmode: %w", err)
	}

	s.reportProgress(Progress{
		Phase:        PhaseComplete,
		CurrentPage:  total,
		TotalPages:   total,
		Percentage:   100,
		BytesWritten: written,
		ElapsedTime:  time.Since(start),
	})
	s.log.Info().Int("bytes", written).Int("pages", total).Dur("elapsed", time.Since(start)).Msg("flash complete")
	return nil
}

// FlashGroup resets every device into its bootloader, waits BootDelay and
// flashes image. All devices in bootloader mode take the same image.
func (s *Sequencer) FlashGroup(ctx context.Context, r Resetter, image []byte) error {
	s.reportProgress(Progress{Phase: PhaseResetting, TotalPages: PageCount(len(image))})
	if err := r.ResetAll(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := sleep(ctx, s.config.BootDelay); err != nil {
		return err
	}
	return s.Flash(ctx, image)
}

// command sends one bootloader command and waits for its acknowledgement.
func (s *Sequencer) command(ctx context.Context, ex Exchanger, cmd Command, payload ...byte) error {
	line := Encode(cmd, payload...)
	s.log.Debug().Str("cmd", cmd.String()).Int("len", len(payload)).Msg("command")

	ack, err := ex.Exchange(ctx, line, s.config.AckTimeout)
	if err != nil {
		if errors.Is(err, fead.ErrNoResponse) {
			return &AckTimeoutError{Command: cmd, Timeout: s.config.AckTimeout}
		}
		return fmt.Errorf("%s: %w", cmd, err)
	}
	s.log.Debug().Str("cmd", cmd.String()).Str("ack", strings.TrimSpace(ack)).Msg("acknowledged")

	return sleep(ctx, s.config.AckSettle)
}

func (s *Sequencer) reportProgress(p Progress) {
	if s.config.ProgressCallback != nil {
		s.config.ProgressCallback(p)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
