package restreamer

import (
	"context"
	"time"
)

// StartMonitor begins polling the engine's health endpoint every interval.
// onChange is called with the new availability whenever it flips; the first
// successful probe always reports a flip to available so callers can resync
// state established while the engine was unreachable.
func (c *Client) StartMonitor(interval time.Duration, onChange func(available bool)) {
	c.monitorTicker = time.NewTicker(interval)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		wasDown := true

		for {
			select {
			case <-c.monitorTicker.C:
				if c.isAvailable() {
					if wasDown {
						c.logger.Info("Engine is back online")
						if onChange != nil {
							onChange(true)
						}
					}
					wasDown = false
				} else {
					if !wasDown {
						c.logger.Warn("Engine is unavailable")
						if onChange != nil {
							onChange(false)
						}
					}
					wasDown = true
				}
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stop halts the availability monitor and waits for it to exit.
func (c *Client) Stop() {
	if c.monitorTicker != nil {
		c.monitorTicker.Stop()
	}
	close(c.stopChan)
	c.wg.Wait()
}

func (c *Client) isAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return c.Ping(ctx) == nil
}
