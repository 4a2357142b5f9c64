// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package flash programs firmware into FEAD slaves whose bootloader speaks a
// reduced STK500 command set, tunneled over the bus as hex-encoded lines.
//
// Every command is sent as
//
//	f<hex of [command, payload..., EOP]>\n
//
// through the bus queue, and any received line is taken as its
// acknowledgement.
package flash

import (
	"encoding/hex"
	"fmt"
)

// Command is a bootloader command byte.
type Command byte

// Bootloader commands
const (
	CmdGetSync       Command = 0x30
	CmdLeaveProgmode Command = 0x51
	CmdLoadAddress   Command = 0x55
	CmdProgPage      Command = 0x64
)

// Framing
const (
	LinePrefix   = 'f'
	EOP          = 0x20 // end of packet
	MemTypeFlash = 0x46 // 'F'
	PageSize     = 128
	bytesPerWord = 2

	// MaxImageSize is the flash reachable with a 16-bit word address
	MaxImageSize = 0x10000 * bytesPerWord
)

func (c Command) String() string {
	switch c {
	case CmdGetSync:
		return "GET_SYNC"
	case CmdLeaveProgmode:
		return "LEAVE_PROGMODE"
	case CmdLoadAddress:
		return "LOAD_ADDRESS"
	case CmdProgPage:
		return "PROG_PAGE"
	default:
		return fmt.Sprintf("Command(0x%02x)", byte(c))
	}
}

// Encode builds the wire line for cmd and its payload.
func Encode(cmd Command, payload ...byte) string {
	packet := make([]byte, 0, len(payload)+2)
	packet = append(packet, byte(cmd))
	packet = append(packet, payload...)
	packet = append(packet, EOP)

	line := make([]byte, 0, 2+hex.EncodedLen(len(packet)))
	line = append(line, LinePrefix)
	line = hex.AppendEncode(line, packet)
	line = append(line, '\n')
	return string(line)
}

// LoadAddress returns the LOAD_ADDRESS payload for a word address.
func LoadAddress(wordAddr uint16) []byte {
	return []byte{byte(wordAddr), byte(wordAddr >> 8)}
}

// ProgPage returns the PROG_PAGE payload for one page of flash data.
func ProgPage(page []byte) []byte {
	payload := make([]byte, 0, len(page)+3)
	payload = append(payload, byte(len(page)>>8), byte(len(page)), MemTypeFlash)
	return append(payload, page...)
}

// PageCount returns the number of pages needed for an image of n bytes.
func PageCount(n int) int {
	return (n + PageSize - 1) / PageSize
}

// PageWordAddress returns the word address of page i.
func PageWordAddress(i int) uint16 {
	return uint16(i * PageSize / bytesPerWord)
}
