// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/fead/pkg/fead"
)

// Topic suffixes
const (
	ActionGet      = "get"
	ActionSet      = "set"
	TopicDiscover  = "discover"
	TopicDevices   = "devices"
	topicErrorPart = "error"
)

// ParamParser resolves a parameter segment of a topic.
type ParamParser interface {
	ParseParam(s string) (int, error)
}

type numericParams struct{}

func (numericParams) ParseParam(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid parameter %q", s)
	}
	return id, nil
}

// MatchTopic matches topic with an MQTT filter containing + and # wildcards.
func MatchTopic(topic, pattern string) bool {
	tokensT, tokensP := strings.Split(topic, "/"), strings.Split(pattern, "/")
	for i, token := range tokensP {
		if token == "#" && i+1 == len(tokensP) {
			return true
		}
		if i >= len(tokensT) {
			return false
		}
		if token != "+" && token != tokensT[i] {
			return false
		}
	}
	return len(tokensP) == len(tokensT)
}

// ParseCommand parses a command topic "<address>/<param>/<get|set>" (prefix
// already stripped) and its payload into a request. Payloads are decimal
// values separated by ':' or spaces.
func ParseCommand(topic string, payload []byte, params ParamParser) (*fead.Request, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 {
		return nil, fmt.Errorf("topic %q: want <address>/<param>/<get|set>", topic)
	}

	addr, err := strconv.Atoi(parts[0])
	if err != nil || addr < 0 {
		return nil, fmt.Errorf("topic %q: invalid address %q", topic, parts[0])
	}
	if params == nil {
		params = numericParams{}
	}
	param, err := params.ParseParam(parts[1])
	if err != nil {
		return nil, fmt.Errorf("topic %q: %w", topic, err)
	}

	values, err := parseValues(string(payload))
	if err != nil {
		return nil, fmt.Errorf("topic %q: %w", topic, err)
	}

	var req *fead.Request
	switch parts[2] {
	case ActionGet:
		req = fead.NewGet(addr, param)
	case ActionSet:
		if len(values) == 0 {
			return nil, fmt.Errorf("topic %q: set needs a value", topic)
		}
		req = &fead.Request{Method: fead.MethodSet, Address: addr, Param: param}
	default:
		return nil, fmt.Errorf("topic %q: unknown action %q", topic, parts[2])
	}

	if len(values) > 0 {
		req.Value = &values[0]
	}
	if len(values) > 1 {
		req.ExtraValue = &values[1]
	}
	return req, nil
}

func parseValues(s string) ([]int64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ':' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) > 2 {
		return nil, fmt.Errorf("at most two values, got %d", len(fields))
	}
	values := make([]int64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", f)
		}
		values = append(values, v)
	}
	return values, nil
}

// FormatValue renders a response value as a payload; empty when the
// device sent none.
func FormatValue(resp fead.Response) string {
	if resp.Value == nil {
		return ""
	}
	s := strconv.FormatInt(*resp.Value, 10)
	if resp.ExtraValue != nil {
		s += ":" + strconv.FormatInt(*resp.ExtraValue, 10)
	}
	return s
}

// ValueTopic is where the value of a parameter is published.
func ValueTopic(prefix string, address, param int) string {
	return fmt.Sprintf("%s/%d/%d", prefix, address, param)
}

// ErrorTopic is where request failures for a parameter are published.
func ErrorTopic(prefix string, address, param int) string {
	return ValueTopic(prefix, address, param) + "/" + topicErrorPart
}
