// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"fmt"
	"strings"
)

// Method is the request method, sent as the first character of a packet.
type Method byte

// Method values
const (
	MethodGet Method = 'g'
	MethodSet Method = 's'
)

// String returns GET or SET.
func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodSet:
		return "SET"
	default:
		return fmt.Sprintf("Method(%q)", byte(m))
	}
}

// ParseMethod parses "get"/"set" (any case) or the wire characters g/s.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "g", "get":
		return MethodGet, nil
	case "s", "set":
		return MethodSet, nil
	}
	return 0, fmt.Errorf("unknown method %q", s)
}

// Request is a single protocol operation addressed to one device or to all
// devices (AddressBroadcast). Value and ExtraValue are optional; ExtraValue is
// only encoded when Value is present.
//
// Requests are queued by pointer: two requests with equal fields are still
// distinct queue entries.
type Request struct {
	Method     Method
	Address    int
	Param      int
	Value      *int64
	ExtraValue *int64
}

// NewGet creates a GET request.
func NewGet(address, param int) *Request {
	return &Request{Method: MethodGet, Address: address, Param: param}
}

// NewSet creates a SET request carrying value.
func NewSet(address, param int, value int64) *Request {
	return &Request{Method: MethodSet, Address: address, Param: param, Value: &value}
}

// WithExtra sets the extra value and returns the request for chaining.
func (r *Request) WithExtra(extra int64) *Request {
	r.ExtraValue = &extra
	return r
}

// IsBroadcast returns true if the request is addressed to all devices.
func (r *Request) IsBroadcast() bool {
	return r.Address == AddressBroadcast
}

// String returns the encoded packet without its terminator.
func (r *Request) String() string {
	return strings.TrimSuffix(Encode(r), "\n")
}

// Response is a decoded reply line.
type Response struct {
	Address    int
	Param      int
	Value      *int64
	ExtraValue *int64
}

// Matches reports whether the response answers req, by address and param.
func (r Response) Matches(req *Request) bool {
	return r.Address == req.Address && r.Param == req.Param
}

// ValueOr returns the response value, or def if none was sent.
func (r Response) ValueOr(def int64) int64 {
	if r.Value == nil {
		return def
	}
	return *r.Value
}

// String formats the response like a wire packet body.
func (r Response) String() string {
	s := fmt.Sprintf("%d:%d", r.Address, r.Param)
	if r.Value != nil {
		s += fmt.Sprintf(":%d", *r.Value)
		if r.ExtraValue != nil {
			s += fmt.Sprintf(":%d", *r.ExtraValue)
		}
	}
	return s
}
