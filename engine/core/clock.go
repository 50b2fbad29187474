package core

import "time"

// Clock measures elapsed wall time in seconds.
type Clock struct {
	start   time.Time
	elapsed float64
	last    float64
	running bool
}

func NewClock() *Clock {
	return &Clock{}
}

// Update refreshes the elapsed time. Has no effect on stopped clocks.
func (c *Clock) Update() {
	if c.running {
		c.elapsed = time.Since(c.start).Seconds()
	}
}

// Start starts the clock and resets the elapsed time.
func (c *Clock) Start() {
	c.start = time.Now()
	c.elapsed = 0
	c.last = 0
	c.running = true
}

// Stop stops the clock. Does not reset the elapsed time.
func (c *Clock) Stop() {
	c.running = false
}

func (c *Clock) Elapsed() float64 {
	return c.elapsed
}

// Delta returns the seconds since the previous Delta or Resync call.
func (c *Clock) Delta() float64 {
	c.Update()
	d := c.elapsed - c.last
	c.last = c.elapsed
	return d
}

// Resync drops the time accumulated since the last Delta, so a pause does not
// show up as one long frame.
func (c *Clock) Resync() {
	c.Update()
	c.last = c.elapsed
}
