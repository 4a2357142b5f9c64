// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"errors"
	"testing"

	"go.bug.st/serial"
)

// fakePort records modem line changes. Other serial.Port methods are not
// implemented.
type fakePort struct {
	serial.Port
	dtr, rts []bool
	fail     bool
}

func (p *fakePort) SetDTR(v bool) error {
	if p.fail {
		return errors.New("ioctl failed")
	}
	p.dtr = append(p.dtr, v)
	return nil
}

func (p *fakePort) SetRTS(v bool) error {
	p.rts = append(p.rts, v)
	return nil
}

func TestModemLinePin(t *testing.T) {
	tests := []struct {
		name     string
		pin      Pin
		inverted bool
		on       bool
		wantDTR  []bool
		wantRTS  []bool
	}{
		{"dtr on", PinDTR, false, true, []bool{true}, nil},
		{"dtr off", PinDTR, false, false, []bool{false}, nil},
		{"rts on inverted", PinRTS, true, true, nil, []bool{false}},
		{"rts off inverted", PinRTS, true, false, nil, []bool{true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &fakePort{}
			pin := &ModemLinePin{Port: port, Pin: tt.pin, Inverted: tt.inverted}
			if err := pin.Set(tt.on); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if !equalBools(port.dtr, tt.wantDTR) || !equalBools(port.rts, tt.wantRTS) {
				t.Errorf("dtr=%v rts=%v, want dtr=%v rts=%v", port.dtr, port.rts, tt.wantDTR, tt.wantRTS)
			}
		})
	}
}

func TestModemLinePin_Error(t *testing.T) {
	pin := &ModemLinePin{Port: &fakePort{fail: true}, Pin: PinDTR}
	if err := pin.Set(true); err == nil {
		t.Error("expected error")
	}
}

func TestModemLine_RequiresSerialPort(t *testing.T) {
	opener, _ := pipeOpener()
	l := New(opener)
	if err := l.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if _, err := ModemLine(l, PinDTR, false); err == nil {
		t.Error("expected error for a non-serial stream")
	}
}

func TestParsePin(t *testing.T) {
	if p, err := ParsePin("RTS"); err != nil || p != PinRTS {
		t.Errorf("ParsePin(RTS) = %v, %v", p, err)
	}
	if p, err := ParsePin("dtr"); err != nil || p != PinDTR {
		t.Errorf("ParsePin(dtr) = %v, %v", p, err)
	}
	if _, err := ParsePin("cts"); err == nil {
		t.Error("expected error for cts")
	}
}

func equalBools(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
