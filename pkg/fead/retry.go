// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import "time"

// AttemptOutcome is the terminal state of a single request attempt.
type AttemptOutcome int

// Attempt outcomes
const (
	OutcomeMatched   AttemptOutcome = iota // correlated reply received
	OutcomeTimeout                         // nothing received in time
	OutcomeMismatch                        // a reply for another address/param
	OutcomeMalformed                       // a line that failed to decode
	OutcomeWriteFailed                     // the transport rejected the write
	OutcomeTransportLost                   // the transport closed while waiting
)

func (o AttemptOutcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeWriteFailed:
		return "write failed"
	case OutcomeTransportLost:
		return "transport lost"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt may follow this outcome.
func (o AttemptOutcome) Retryable() bool {
	return o == OutcomeTimeout || o == OutcomeMismatch || o == OutcomeMalformed
}

// RetryPolicy controls the attempt loop of a request.
type RetryPolicy struct {
	// MaxAttempts is the number of writes before giving up (at least 1)
	MaxAttempts int

	// Timeout is the wait for a reply on the first attempt
	Timeout time.Duration

	// Scale multiplies Timeout by the attempt number, so later attempts
	// tolerate a slower reply
	Scale bool
}

// DefaultRetryPolicy returns the policy used when no option overrides it.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Timeout:     DefaultTimeout,
		Scale:       true,
	}
}

// TimeoutFor returns the reply timeout for the 1-based attempt number.
func (p RetryPolicy) TimeoutFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.Scale {
		return p.Timeout * time.Duration(attempt)
	}
	return p.Timeout
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// runAttempt performs one write-and-wait cycle. The reply subscription is
// taken before the write so a fast reply cannot slip past. A nil match
// accepts any line.
func runAttempt(t Transport, line string, timeout time.Duration, match func(Response) bool) (string, Response, AttemptOutcome, error) {
	sub := t.NextLine()
	defer sub.Unsubscribe()

	if err := t.WriteLine(line); err != nil {
		return "", Response{}, OutcomeWriteFailed, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply, ok := <-sub.Lines():
		if !ok {
			return "", Response{}, OutcomeTransportLost, ErrTransportUnavailable
		}
		if match == nil {
			return reply, Response{}, OutcomeMatched, nil
		}
		resp, err := Decode(reply)
		if err != nil {
			return reply, Response{}, OutcomeMalformed, err
		}
		if !match(resp) {
			return reply, resp, OutcomeMismatch, nil
		}
		return reply, resp, OutcomeMatched, nil
	case <-timer.C:
		return "", Response{}, OutcomeTimeout, nil
	}
}
