// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import "strconv"

// Encode converts a request to its wire line, including the trailing newline.
// Numeric fields are written as decimal without escaping; callers must not
// smuggle separators into them.
func Encode(r *Request) string {
	buf := make([]byte, 0, 24)
	buf = append(buf, byte(r.Method))
	buf = strconv.AppendInt(buf, int64(r.Address), 10)
	buf = append(buf, Separator)
	buf = strconv.AppendInt(buf, int64(r.Param), 10)

	if r.Value != nil {
		buf = append(buf, Separator)
		buf = strconv.AppendInt(buf, *r.Value, 10)

		// Extra value only has meaning after a value
		if r.ExtraValue != nil {
			buf = append(buf, Separator)
			buf = strconv.AppendInt(buf, *r.ExtraValue, 10)
		}
	}

	buf = append(buf, Terminator)
	return string(buf)
}
