// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"context"
	"sort"
	"sync"
)

// Registry keeps device records by address.
type Registry struct {
	mu      sync.RWMutex
	devices map[int]*Device
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[int]*Device)}
}

// Add stores d, replacing any record with the same address.
func (r *Registry) Add(d *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.Address] = d
}

// Get returns the record at address.
func (r *Registry) Get(address int) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[address]
	return d, ok
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Devices returns all records ordered by address.
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Merge adds discovered devices. A known record keeps its identity; its UID
// is updated when the discovered record carries one.
func (r *Registry) Merge(found []*Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range found {
		existing, ok := r.devices[d.Address]
		if !ok {
			r.devices[d.Address] = d
			continue
		}
		if d.UID != nil {
			uid := *d.UID
			existing.UID = &uid
		}
	}
}

// ProbeAll runs IsOnline for every record in address order and returns the
// online ones. Probes go through the bus queue one at a time.
func (r *Registry) ProbeAll(ctx context.Context, bus Getter) []*Device {
	var online []*Device
	for _, d := range r.Devices() {
		if d.IsOnline(ctx, bus) {
			online = append(online, d)
		}
	}
	return online
}
