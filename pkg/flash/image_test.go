// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package flash

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// hexRecord builds one Intel HEX record with a valid checksum.
func hexRecord(addr uint16, typ byte, data ...byte) string {
	rec := []byte{byte(len(data)), byte(addr >> 8), byte(addr), typ}
	rec = append(rec, data...)
	var sum byte
	for _, b := range rec {
		sum += b
	}
	rec = append(rec, -sum)
	return fmt.Sprintf(":%X\n", rec)
}

const hexEOF = ":00000001FF\n"

func TestParseIntelHex(t *testing.T) {
	input := hexRecord(0x0000, recData, 0x0c, 0x94, 0x34, 0x00) +
		hexRecord(0x0008, recData, 0xaa, 0xbb) +
		hexEOF

	image, err := ParseIntelHex(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseIntelHex failed: %v", err)
	}

	want := []byte{0x0c, 0x94, 0x34, 0x00, 0xff, 0xff, 0xff, 0xff, 0xaa, 0xbb}
	if !bytes.Equal(image, want) {
		t.Errorf("image = % x, want % x", image, want)
	}
}

func TestParseIntelHex_ExtendedAddress(t *testing.T) {
	input := hexRecord(0x0000, recExtendedLinearAddress, 0x00, 0x01) +
		hexRecord(0x0000, recData, 0x42) +
		hexEOF

	image, err := ParseIntelHex(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseIntelHex failed: %v", err)
	}
	if len(image) != 0x10001 {
		t.Fatalf("len = %d, want %d", len(image), 0x10001)
	}
	if image[0x10000] != 0x42 || image[0] != 0xff {
		t.Errorf("unexpected fill or data")
	}

	segment := hexRecord(0x0000, recExtendedSegmentAddress, 0x00, 0x10) +
		hexRecord(0x0000, recData, 0x01) +
		hexEOF
	image, err = ParseIntelHex(strings.NewReader(segment))
	if err != nil {
		t.Fatalf("ParseIntelHex failed: %v", err)
	}
	if len(image) != 0x101 {
		t.Errorf("len = %d, want %d", len(image), 0x101)
	}
}

func TestParseIntelHex_Errors(t *testing.T) {
	good := hexRecord(0x0000, recData, 0x01, 0x02)
	bad := []byte(good)
	bad[len(bad)-2] = '0' // corrupt checksum
	if string(bad) == good {
		bad[len(bad)-2] = '1'
	}

	tests := []struct {
		name  string
		input string
	}{
		{"no start code", "0100000001FE\n" + hexEOF},
		{"bad checksum", string(bad) + hexEOF},
		{"not hex", ":zz\n" + hexEOF},
		{"count mismatch", ":05000000010203\n" + hexEOF},
		{"missing eof", good},
		{"data after eof", hexEOF + good},
		{"unknown type", hexRecord(0, 0x09, 0x00) + hexEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIntelHex(strings.NewReader(tt.input))
			var hre *HexRecordError
			if !errors.As(err, &hre) {
				t.Errorf("err = %v, want *HexRecordError", err)
			}
		})
	}

	_, err := ParseIntelHex(strings.NewReader(hexEOF))
	if !errors.Is(err, ErrEmptyImage) {
		t.Errorf("empty image: err = %v", err)
	}
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()

	bin := filepath.Join(dir, "firmware.bin")
	if err := os.WriteFile(bin, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	image, err := LoadImage(bin)
	if err != nil {
		t.Fatalf("LoadImage(bin) failed: %v", err)
	}
	if !bytes.Equal(image, []byte{1, 2, 3}) {
		t.Errorf("bin image = % x", image)
	}

	hexPath := filepath.Join(dir, "firmware.HEX")
	if err := os.WriteFile(hexPath, []byte(hexRecord(0, recData, 9, 8)+hexEOF), 0o644); err != nil {
		t.Fatal(err)
	}
	image, err = LoadImage(hexPath)
	if err != nil {
		t.Fatalf("LoadImage(hex) failed: %v", err)
	}
	if !bytes.Equal(image, []byte{9, 8}) {
		t.Errorf("hex image = % x", image)
	}

	empty := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadImage(empty); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("empty bin: err = %v", err)
	}

	if _, err := LoadImage(filepath.Join(dir, "missing.bin")); err == nil {
		t.Error("expected error for missing file")
	}
}
