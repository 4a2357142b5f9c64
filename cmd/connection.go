// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/Thermoquad/fead/pkg/capture"
	"github.com/Thermoquad/fead/pkg/fead"
	"github.com/Thermoquad/fead/pkg/transport"
	"golang.org/x/term"
)

// session is an open bus: the line transport, the bus driving it and the
// optional capture file tapping it.
type session struct {
	line     *transport.Line
	bus      *fead.Bus
	capture  *capture.Writer
	connInfo string
}

// Close closes the transport and the capture file
func (s *session) Close() error {
	err := s.line.Close()
	if s.capture != nil {
		err = errors.Join(err, s.capture.Close())
	}
	return err
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("FEAD_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// connectionOpener picks a serial or WebSocket opener based on settings
func connectionOpener() (transport.Opener, string, error) {
	if cfg.URL != "" {
		password := ""
		if cfg.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}
		opener := transport.WebSocketOpener(cfg.URL, cfg.Username, password, cfg.NoSSLVerify)
		return opener, fmt.Sprintf("WebSocket: %s", cfg.URL), nil
	}

	if cfg.Port != "" {
		return transport.SerialOpener(cfg.Port, cfg.Baud), fmt.Sprintf("Serial: %s @ %d baud", cfg.Port, cfg.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// openSession opens the connection and creates a bus on it
func openSession(ctx context.Context) (*session, error) {
	opener, connInfo, err := connectionOpener()
	if err != nil {
		return nil, err
	}

	s := &session{connInfo: connInfo}
	lineOpts := []transport.LineOption{transport.WithLogger(logger)}
	if cfg.Capture != "" {
		s.capture, err = capture.Create(cfg.Capture)
		if err != nil {
			return nil, err
		}
		lineOpts = append(lineOpts, transport.WithRecorder(s.capture))
		logger.Info().Str("file", cfg.Capture).Str("session", s.capture.Session()).Msg("capturing traffic")
	}

	s.line = transport.New(opener, lineOpts...)
	if err := s.line.Open(ctx); err != nil {
		if s.capture != nil {
			s.capture.Close()
		}
		return nil, err
	}

	busOpts := append(cfg.BusOptions(), fead.WithLogger(logger))
	s.bus = fead.New(s.line, busOpts...)
	return s, nil
}

// mustOpenSession opens a session or exits with the connection error code
func mustOpenSession(ctx context.Context) *session {
	s, err := openSession(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	return s
}
