// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2csim

import (
	"sync"
	"time"
)

// Clock is a virtual time source. Delay advances it instantly.
type Clock struct {
	mu  sync.Mutex
	now time.Duration
}

// Delay implements bitbang.Delayer.
func (c *Clock) Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// Now returns the time elapsed since the Wire was created.
func (c *Clock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
