package avsession

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/avsession/engine"
)

// ErrLoopRunning indicates a manual Iterate was attempted while the
// continuous iteration loop is active. The engine's iterate primitive is
// not reentrant, so the two modes cannot be interleaved.
var ErrLoopRunning = errors.New("iteration loop is running")

// Start begins continuous mode: one background goroutine repeatedly
// iterates the engine and sleeps for the engine-reported interval, until
// Stop or Kill. Start is a no-op while the loop is already running.
func (c *Controller) Start() error {
	if c.killed.Load() {
		return engine.ErrDisposed
	}

	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	if c.loopRunning {
		c.log.WithFields(logrus.Fields{
			"function": "Start",
		}).Debug("Iteration loop already running")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.loopCancel = cancel
	c.loopRunning = true
	c.loopWG.Add(1)
	go c.runLoop(ctx)

	c.log.WithFields(logrus.Fields{
		"function": "Start",
	}).Info("Iteration loop started")
	return nil
}

// Stop cancels the continuous loop and waits for it to exit. The wait is
// bounded by the in-flight iterate call, which cannot itself be
// interrupted. Stop is a no-op if the loop is not running.
func (c *Controller) Stop() {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	if !c.loopRunning {
		return
	}

	c.loopCancel()
	c.loopWG.Wait()
	c.loopRunning = false
	c.loopCancel = nil

	c.log.WithFields(logrus.Fields{
		"function": "Stop",
	}).Info("Iteration loop stopped")
}

// Iterate performs exactly one iterate step in manual mode and returns the
// interval to wait before the next step. It fails with ErrLoopRunning
// while continuous mode is active, without touching the engine.
func (c *Controller) Iterate() (time.Duration, error) {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	if c.loopRunning {
		return 0, ErrLoopRunning
	}
	return c.step()
}

// runLoop is the continuous-mode body: iterate, then sleep for the
// reported interval or until cancellation, whichever comes first.
func (c *Controller) runLoop(ctx context.Context) {
	defer c.loopWG.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		interval, err := c.step()
		if err != nil {
			// Engine gone: nothing left to drive.
			return
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// step runs one engine iteration under the engine mutex and returns the
// next wait interval, substituting the fallback when the engine reports
// no preference.
func (c *Controller) step() (time.Duration, error) {
	c.engMu.Lock()
	defer c.engMu.Unlock()

	if c.eng == nil {
		return 0, engine.ErrDisposed
	}

	c.eng.IterateOnce()
	interval := c.eng.Interval()
	if interval <= 0 {
		interval = c.fallback
	}
	c.metrics.iterations.Inc()
	return interval, nil
}
