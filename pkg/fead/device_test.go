// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fead

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGetter struct {
	mock.Mock
}

func (m *mockGetter) Get(ctx context.Context, address, param int, args ...int64) (Response, error) {
	ret := m.Called(ctx, address, param)
	return ret.Get(0).(Response), ret.Error(1)
}

func TestIsOnline_KnownUIDSkipsBus(t *testing.T) {
	m := new(mockGetter)
	d := &Device{Address: 4, UID: ptr(int64(99))}

	assert.True(t, d.IsOnline(context.Background(), m))
	m.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestIsOnline_ProbeStoresUID(t *testing.T) {
	m := new(mockGetter)
	m.On("Get", mock.Anything, 7, ParamUID).
		Return(Response{Address: 7, Param: ParamUID, Value: ptr(int64(31337))}, nil).
		Once()

	d := NewDevice(7)
	require.True(t, d.IsOnline(context.Background(), m))
	require.NotNil(t, d.UID)
	assert.Equal(t, int64(31337), *d.UID)

	// Second call is answered from the stored UID
	assert.True(t, d.IsOnline(context.Background(), m))
	m.AssertExpectations(t)
	m.AssertNumberOfCalls(t, "Get", 1)
}

func TestIsOnline_NoResponseIsFalse(t *testing.T) {
	m := new(mockGetter)
	m.On("Get", mock.Anything, 8, ParamUID).
		Return(Response{}, &NoResponseError{Request: "g8:255", Attempts: 3})

	d := NewDevice(8)
	assert.False(t, d.IsOnline(context.Background(), m))
	assert.Nil(t, d.UID)
	assert.False(t, Online(d))
}

func TestIsOnline_BroadcastAddress(t *testing.T) {
	m := new(mockGetter)
	assert.False(t, NewDevice(AddressBroadcast).IsOnline(context.Background(), m))
	m.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestIsOnline_OverBus(t *testing.T) {
	ft := newFakeTransport(echoReply(55))
	bus := fastBus(ft)

	d := NewDevice(3)
	assert.True(t, d.IsOnline(context.Background(), bus))
	assert.True(t, d.IsOnline(context.Background(), bus))
	assert.Len(t, ft.Writes(), 1)
}

func TestDeviceString(t *testing.T) {
	assert.Equal(t, "device 3 (offline)", NewDevice(3).String())
	assert.Equal(t, "device 3 (uid 12)", (&Device{Address: 3, UID: ptr(int64(12))}).String())
}

func TestRegistry_Merge(t *testing.T) {
	r := NewRegistry()
	known := NewDevice(5)
	r.Add(known)

	r.Merge([]*Device{
		{Address: 5, UID: ptr(int64(50))},
		{Address: 1},
	})

	require.Equal(t, 2, r.Len())
	got, ok := r.Get(5)
	require.True(t, ok)
	assert.Same(t, known, got)
	assert.Equal(t, int64(50), *known.UID)

	devices := r.Devices()
	assert.Equal(t, 1, devices[0].Address)
	assert.Equal(t, 5, devices[1].Address)
}

func TestRegistry_ProbeAll(t *testing.T) {
	m := new(mockGetter)
	m.On("Get", mock.Anything, 2, ParamUID).
		Return(Response{Address: 2, Param: ParamUID, Value: ptr(int64(20))}, nil)
	m.On("Get", mock.Anything, 3, ParamUID).
		Return(Response{}, &NoResponseError{Request: "g3:255", Attempts: 1})

	r := NewRegistry()
	r.Add(NewDevice(3))
	r.Add(NewDevice(2))
	r.Add(&Device{Address: 1, UID: ptr(int64(10))})

	online := r.ProbeAll(context.Background(), m)
	require.Len(t, online, 2)
	assert.Equal(t, 1, online[0].Address)
	assert.Equal(t, 2, online[1].Address)
	m.AssertNumberOfCalls(t, "Get", 2)
}
