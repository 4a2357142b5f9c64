// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Thermoquad/fead/pkg/fead"
)

// commandContext returns a context cancelled on Ctrl+C or SIGTERM
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// parseAddress parses a bus address; 0 addresses all devices
func parseAddress(s string) (int, error) {
	addr, err := strconv.Atoi(s)
	if err != nil || addr < 0 {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return addr, nil
}

// parseRequest builds a request from "<address> <param> [value [extra]]"
func parseRequest(method fead.Method, args []string) (*fead.Request, error) {
	if len(args) < 2 || len(args) > 4 {
		return nil, fmt.Errorf("want <address> <param> [value [extra]]")
	}

	addr, err := parseAddress(args[0])
	if err != nil {
		return nil, err
	}
	param, err := params.ParseParam(args[1])
	if err != nil {
		return nil, err
	}

	req := &fead.Request{Method: method, Address: addr, Param: param}
	for i, arg := range args[2:] {
		v, err := strconv.ParseInt(arg, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", arg)
		}
		if i == 0 {
			req.Value = &v
		} else {
			req.ExtraValue = &v
		}
	}
	if method == fead.MethodSet && req.Value == nil {
		return nil, fmt.Errorf("set needs a value")
	}
	return req, nil
}

// describeResponse formats a reply as "<addr> NAME(id) = value[:extra]"
func describeResponse(resp fead.Response) string {
	s := fmt.Sprintf("%3d %s(%d)", resp.Address, fead.FormatParamName(resp.Param, params), resp.Param)
	if resp.Value == nil {
		return s
	}
	s += fmt.Sprintf(" = %d", *resp.Value)
	if resp.ExtraValue != nil {
		s += fmt.Sprintf(":%d", *resp.ExtraValue)
	}
	return s
}

// exitOnNoResponse exits with code 1 if err is a missing reply. Other
// errors are returned.
func exitOnNoResponse(err error) error {
	if errors.Is(err, fead.ErrNoResponse) {
		fmt.Printf("TIMEOUT: %v\n", err)
		os.Exit(1)
	}
	return err
}

// runRequest executes req, broadcasting it when addressed to all devices.
// Returns the number of replies printed.
func runRequest(ctx context.Context, w io.Writer, bus *fead.Bus, req *fead.Request) (int, error) {
	if !req.IsBroadcast() {
		resp, err := bus.Do(ctx, req)
		if err != nil {
			return 0, err
		}
		fmt.Fprintln(w, describeResponse(resp))
		return 1, nil
	}

	replies := 0
	err := bus.Broadcast(ctx, req, func(resp fead.Response, err error) {
		if err != nil {
			fmt.Fprintf(w, "    %v\n", err)
			return
		}
		replies++
		fmt.Fprintln(w, describeResponse(resp))
	})
	return replies, err
}
