package cache

import (
	"context"
	"sync"
	"time"

	"preclear_disk/internal/probe"
)

type fakeProber struct {
	mu        sync.Mutex
	attrs     map[string]probe.Attributes
	temps     map[string]string
	spunDown  map[string]bool
	attrCalls map[string]int
	tempCalls map[string]int
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		attrs:     make(map[string]probe.Attributes),
		temps:     make(map[string]string),
		spunDown:  make(map[string]bool),
		attrCalls: make(map[string]int),
		tempCalls: make(map[string]int),
	}
}

func (f *fakeProber) Attributes(_ context.Context, device string) probe.Attributes {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attrCalls[device]++
	return f.attrs[device]
}

func (f *fakeProber) IsSpunDown(_ context.Context, device string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spunDown[device]
}

func (f *fakeProber) Temperature(_ context.Context, device string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tempCalls[device]++
	if t, ok := f.temps[device]; ok {
		return t
	}
	return probe.UnknownTemperature
}

// clock is a manually advanced time source.
type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }
