// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package vocab maps FEAD parameter names to ids using the firmware's
// parameter header. Each upper-case identifier of three or more characters
// in the header takes its occurrence index as id.
package vocab

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Thermoquad/fead/pkg/fead"
)

var identifier = regexp.MustCompile(`[A-Z_]{3,}`)

// reserved ids answered by every device regardless of firmware
var reserved = map[string]int{
	"RESET":    fead.ParamReset,
	"VERSION":  fead.ParamVersion,
	"DISCOVER": fead.ParamDiscover,
	"ADDRESS":  fead.ParamAddress,
	"UID":      fead.ParamUID,
}

// Vocab is a bidirectional parameter name table.
type Vocab struct {
	ids   map[string]int
	names map[int]string
}

var _ fead.ParamNamer = (*Vocab)(nil)

// Reserved returns a vocabulary holding only the reserved parameters.
func Reserved() *Vocab {
	v := &Vocab{ids: make(map[string]int), names: make(map[int]string)}
	v.index()
	return v
}

// FromHeader parses the header file at path.
func FromHeader(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary header: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a header. When an identifier occurs more than once its last
// occurrence wins.
func Parse(r io.Reader) (*Vocab, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary header: %w", err)
	}

	v := &Vocab{ids: make(map[string]int), names: make(map[int]string)}
	for id, name := range identifier.FindAllString(string(data), -1) {
		// Reserved ids keep their reserved names
		if isReserved(id) {
			continue
		}
		v.ids[name] = id
	}
	v.index()
	return v, nil
}

func isReserved(id int) bool {
	for _, r := range reserved {
		if r == id {
			return true
		}
	}
	return false
}

func (v *Vocab) index() {
	for name, id := range reserved {
		v.ids[name] = id
	}
	v.names = make(map[int]string, len(v.ids))
	for name, id := range v.ids {
		v.names[id] = name
	}
}

// Lookup returns the id of name.
func (v *Vocab) Lookup(name string) (int, bool) {
	id, ok := v.ids[name]
	return id, ok
}

// Name returns the name of id.
func (v *Vocab) Name(id int) (string, bool) {
	name, ok := v.names[id]
	return name, ok
}

// Len returns the number of names.
func (v *Vocab) Len() int {
	return len(v.ids)
}

// Names returns all names ordered by id.
func (v *Vocab) Names() []string {
	out := make([]string, 0, len(v.ids))
	for name := range v.ids {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		if v.ids[out[i]] != v.ids[out[j]] {
			return v.ids[out[i]] < v.ids[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// ParseParam accepts a decimal id or a name (case-insensitive).
func (v *Vocab) ParseParam(s string) (int, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		if id < 0 {
			return 0, fmt.Errorf("invalid parameter %q", s)
		}
		return id, nil
	}
	if id, ok := v.Lookup(strings.ToUpper(s)); ok {
		return id, nil
	}
	return 0, fmt.Errorf("unknown parameter %q", s)
}
