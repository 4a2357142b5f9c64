// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"strconv"
	"strings"
)

// Decode parses a received line into a Response.
//
// The leading method character is dropped and the remainder is split on ':'.
// The first two fields are address and param, the next two (if present) are
// value and extra value. A missing or non-numeric field yields a
// *MalformedPacketError; fields beyond the fourth are ignored.
func Decode(line string) (Response, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 2 {
		return Response{}, &MalformedPacketError{Line: line, Reason: "too short"}
	}

	fields := strings.Split(line[1:], string(Separator))
	if len(fields) < 2 {
		return Response{}, &MalformedPacketError{Line: line, Reason: "missing param field"}
	}

	numbers := make([]int64, 0, 4)
	for i, f := range fields {
		if i >= 4 {
			break
		}
		n, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return Response{}, &MalformedPacketError{Line: line, Field: i, Reason: "not a number", Err: err}
		}
		numbers = append(numbers, n)
	}

	resp := Response{
		Address: int(numbers[0]),
		Param:   int(numbers[1]),
	}
	if len(numbers) > 2 {
		resp.Value = &numbers[2]
	}
	if len(numbers) > 3 {
		resp.ExtraValue = &numbers[3]
	}
	return resp, nil
}
