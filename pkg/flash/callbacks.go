// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package flash

import "time"

// Programming phases reported through Progress.Phase
const (
	PhaseResetting   = "resetting"
	PhaseSync        = "sync"
	PhaseProgramming = "programming"
	PhaseLeaving     = "leaving"
	PhaseComplete    = "complete"
)

// Progress contains information about the programming progress.
type Progress struct {
	// Phase is one of the Phase constants
	Phase string

	// CurrentPage is the number of pages written so far
	CurrentPage int

	// TotalPages is the number of pages in the image
	TotalPages int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// BytesWritten is the number of image bytes sent so far
	BytesWritten int

	// ElapsedTime is the time since programming started
	ElapsedTime time.Duration
}

// ProgressCallback is called after every phase change and every page.
// Implementations should return quickly; the bus is held while they run.
type ProgressCallback func(Progress)
