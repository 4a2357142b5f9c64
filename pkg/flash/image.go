// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package flash

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Intel HEX record types
const (
	recData                   = 0x00
	recEOF                    = 0x01
	recExtendedSegmentAddress = 0x02
	recStartSegmentAddress    = 0x03
	recExtendedLinearAddress  = 0x04
	recStartLinearAddress     = 0x05
)

// erased flash fills gaps between HEX records
const fillByte = 0xFF

// LoadImage reads a firmware image. Files ending in .hex or .ihex are parsed
// as Intel HEX; anything else is taken as a raw binary.
func LoadImage(path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihex":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open image: %w", err)
		}
		defer f.Close()
		return ParseIntelHex(f)
	default:
		image, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		if len(image) == 0 {
			return nil, ErrEmptyImage
		}
		return image, nil
	}
}

// ParseIntelHex converts Intel HEX records into a flat image starting at
// address 0. Gaps are filled with 0xFF.
func ParseIntelHex(r io.Reader) ([]byte, error) {
	var image []byte
	var base uint32
	sawEOF := false
	lineNum := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNum++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if sawEOF {
			return nil, &HexRecordError{Line: lineNum, Reason: "data after EOF record"}
		}
		if text[0] != ':' {
			return nil, &HexRecordError{Line: lineNum, Reason: "missing start code"}
		}

		rec, err := hex.DecodeString(text[1:])
		if err != nil {
			return nil, &HexRecordError{Line: lineNum, Reason: err.Error()}
		}
		if len(rec) < 5 {
			return nil, &HexRecordError{Line: lineNum, Reason: "record too short"}
		}

		count := int(rec[0])
		if len(rec) != count+5 {
			return nil, &HexRecordError{Line: lineNum, Reason: "byte count mismatch"}
		}

		var sum byte
		for _, b := range rec {
			sum += b
		}
		if sum != 0 {
			return nil, &HexRecordError{Line: lineNum, Reason: "checksum mismatch"}
		}

		offset := uint32(rec[1])<<8 | uint32(rec[2])
		data := rec[4 : 4+count]

		switch rec[3] {
		case recData:
			addr := base + offset
			end := int(addr) + len(data)
			if end > MaxImageSize {
				return nil, fmt.Errorf("%w: data at 0x%x", ErrImageTooLarge, addr)
			}
			for len(image) < end {
				image = append(image, fillByte)
			}
			copy(image[addr:], data)
		case recEOF:
			sawEOF = true
		case recExtendedSegmentAddress:
			if count != 2 {
				return nil, &HexRecordError{Line: lineNum, Reason: "bad segment address record"}
			}
			base = (uint32(data[0])<<8 | uint32(data[1])) << 4
		case recExtendedLinearAddress:
			if count != 2 {
				return nil, &HexRecordError{Line: lineNum, Reason: "bad linear address record"}
			}
			base = (uint32(data[0])<<8 | uint32(data[1])) << 16
		case recStartSegmentAddress, recStartLinearAddress:
			// Entry point, irrelevant for flashing
		default:
			return nil, &HexRecordError{Line: lineNum, Reason: fmt.Sprintf("unknown record type 0x%02x", rec[3])}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	if !sawEOF {
		return nil, &HexRecordError{Line: lineNum, Reason: "missing EOF record"}
	}
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	return image, nil
}
