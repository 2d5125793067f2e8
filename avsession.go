package avsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/avsession/engine"
	"github.com/opd-ai/avsession/event"
	"github.com/opd-ai/avsession/group"
)

// Controller owns one native engine instance and exposes the call-session
// surface on top of it: call operations, observer subscriptions, group
// audio broadcast, and the iteration scheduler.
//
// All engine access is serialized internally. Session operations must not
// be invoked from inside observer callbacks: the engine's iterate primitive
// is not reentrant and a callback may be running on the iterate thread.
// Subscribing and unsubscribing from inside callbacks is safe and takes
// effect from the next notification.
type Controller struct {
	id       string
	log      *logrus.Entry
	fallback time.Duration

	// engMu serializes every engine call; eng is nil after Kill.
	engMu sync.Mutex
	eng   engine.Engine

	dispatcher *event.Dispatcher
	broadcast  *group.Broadcast
	metrics    *metrics

	sessMu   sync.RWMutex
	sessions map[uint32]*session

	loopMu      sync.Mutex
	loopRunning bool
	loopCancel  context.CancelFunc
	loopWG      sync.WaitGroup

	killed atomic.Bool
}

// New constructs a controller bound to an existing peer identity. The
// engine is created once here; a construction failure is fatal and no
// partially-usable controller is produced.
func New(identity engine.Identity, create engine.CreateFunc, options *Options) (*Controller, error) {
	if create == nil {
		return nil, errors.New("engine create function cannot be nil")
	}
	opts := options.normalize()

	id := uuid.NewString()
	log := opts.Logger.WithFields(logrus.Fields{
		"component":   "avsession",
		"instance_id": id,
	})

	log.WithFields(logrus.Fields{
		"function": "New",
	}).Info("Creating call session controller")

	eng, err := create(identity)
	if err != nil {
		log.WithFields(logrus.Fields{
			"function": "New",
			"error":    err.Error(),
		}).Error("Engine construction failed")
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	if eng == nil {
		return nil, errors.New("engine create function returned a nil engine")
	}

	c := &Controller{
		id:       id,
		log:      log,
		fallback: opts.FallbackInterval,
		eng:      eng,
		metrics:  newMetrics(opts.Registerer),
		sessions: make(map[uint32]*session),
	}

	c.dispatcher = event.NewDispatcher(eng, log)
	c.dispatcher.SetCounters(
		func(cap event.Capability) { c.metrics.eventsDispatched.WithLabelValues(cap.String()).Inc() },
		func(cap event.Capability) { c.metrics.observerFaults.WithLabelValues(cap.String()).Inc() },
	)
	c.dispatcher.SetTap(event.CapCallRequest, func(payload interface{}) {
		if ev, ok := payload.(event.CallRequest); ok {
			c.mirrorRing(ev.Peer, ev.AudioEnabled, ev.VideoEnabled)
		}
	})
	c.dispatcher.SetTap(event.CapCallState, func(payload interface{}) {
		if ev, ok := payload.(event.StateChange); ok {
			c.mirrorNative(ev.Peer, ev.State)
		}
	})

	c.broadcast = group.New(c.dispatcher, log)

	log.WithFields(logrus.Fields{
		"function":          "New",
		"fallback_interval": c.fallback,
	}).Debug("Controller configured")

	return c, nil
}

// withEngine runs f with exclusive access to the engine handle. It fails
// with ErrDisposed once the controller has been killed.
func (c *Controller) withEngine(f func(engine.Engine) error) error {
	c.engMu.Lock()
	defer c.engMu.Unlock()
	if c.eng == nil {
		return engine.ErrDisposed
	}
	return f(c.eng)
}

// Call requests an audio/video call with a peer. A bit rate of 0 disables
// that medium. The result is purely the engine's verdict; no local state
// is pre-checked.
func (c *Controller) Call(peer, audioBitRate, videoBitRate uint32) error {
	err := c.withEngine(func(e engine.Engine) error {
		if code := e.PlaceCall(peer, audioBitRate, videoBitRate); code != engine.CallErrOk {
			return code
		}
		return nil
	})
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"function": "Call",
			"peer":     peer,
			"error":    err.Error(),
		}).Warn("Call request rejected")
		return err
	}

	c.mirrorRing(peer, audioBitRate > 0, videoBitRate > 0)
	c.metrics.callsStarted.Inc()
	c.log.WithFields(logrus.Fields{
		"function":       "Call",
		"peer":           peer,
		"audio_bit_rate": audioBitRate,
		"video_bit_rate": videoBitRate,
	}).Info("Call requested")
	return nil
}

// Answer accepts a pending incoming call request from a peer.
func (c *Controller) Answer(peer, audioBitRate, videoBitRate uint32) error {
	err := c.withEngine(func(e engine.Engine) error {
		if code := e.AnswerCall(peer, audioBitRate, videoBitRate); code != engine.AnswerErrOk {
			return code
		}
		return nil
	})
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"function": "Answer",
			"peer":     peer,
			"error":    err.Error(),
		}).Warn("Answer rejected")
		return err
	}

	c.mirrorActive(peer)
	c.metrics.callsAnswered.Inc()
	c.log.WithFields(logrus.Fields{
		"function": "Answer",
		"peer":     peer,
	}).Info("Call answered")
	return nil
}

// CallControl sends a call control signal to an existing session.
func (c *Controller) CallControl(peer uint32, control engine.CallControl) error {
	err := c.withEngine(func(e engine.Engine) error {
		if code := e.SendControl(peer, control); code != engine.ControlErrOk {
			return code
		}
		return nil
	})
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"function": "CallControl",
			"peer":     peer,
			"control":  control,
			"error":    err.Error(),
		}).Warn("Call control rejected")
		return err
	}

	if control == engine.CallControlCancel {
		c.mirrorFinish(peer)
	}
	c.metrics.controlsSent.Inc()
	return nil
}

// SetAudioBitRate requests an audio bit rate change for a call. With force
// set, the engine applies it even if its own congestion estimate disagrees.
func (c *Controller) SetAudioBitRate(peer, bitRate uint32, force bool) error {
	err := c.withEngine(func(e engine.Engine) error {
		if code := e.SetAudioBitRate(peer, bitRate, force); code != engine.BitrateErrOk {
			return code
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.metrics.bitrateChanges.WithLabelValues("audio").Inc()
	return nil
}

// SetVideoBitRate requests a video bit rate change for a call.
func (c *Controller) SetVideoBitRate(peer, bitRate uint32, force bool) error {
	err := c.withEngine(func(e engine.Engine) error {
		if code := e.SetVideoBitRate(peer, bitRate, force); code != engine.BitrateErrOk {
			return code
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.metrics.bitrateChanges.WithLabelValues("video").Inc()
	return nil
}

// SendAudioFrame transmits one audio frame. The per-channel sample count
// is derived from the buffer length, which must be an exact multiple of
// the channel count; mismatches fail before any engine call.
func (c *Controller) SendAudioFrame(peer uint32, pcm []int16, channels uint8, samplingRate uint32) error {
	if len(pcm) == 0 {
		return fmt.Errorf("%w: sample buffer is required", engine.ErrInvalidArgument)
	}
	if channels == 0 {
		return fmt.Errorf("%w: channel count must be nonzero", engine.ErrInvalidArgument)
	}
	if len(pcm)%int(channels) != 0 {
		return fmt.Errorf("%w: sample buffer length %d is not divisible by %d channels",
			engine.ErrInvalidArgument, len(pcm), channels)
	}
	sampleCount := len(pcm) / int(channels)

	err := c.withEngine(func(e engine.Engine) error {
		if code := e.SendAudioFrame(peer, pcm, sampleCount, channels, samplingRate); code != engine.SendErrOk {
			return code
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.metrics.framesSent.WithLabelValues("audio").Inc()
	return nil
}

// SendVideoFrame transmits one YUV420 video frame. Absent plane buffers
// fail before any engine call.
func (c *Controller) SendVideoFrame(peer uint32, width, height uint16, y, u, v []byte) error {
	if len(y) == 0 || len(u) == 0 || len(v) == 0 {
		return fmt.Errorf("%w: all three plane buffers are required", engine.ErrInvalidArgument)
	}

	err := c.withEngine(func(e engine.Engine) error {
		if code := e.SendVideoFrame(peer, width, height, y, u, v); code != engine.SendErrOk {
			return code
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.metrics.framesSent.WithLabelValues("video").Inc()
	return nil
}

// AddGroupAudioChannel creates a new group audio channel. The generated
// receive callback is retained until teardown because the engine may
// invoke it for its whole remaining lifetime.
func (c *Controller) AddGroupAudioChannel() (int, error) {
	channel := -1
	err := c.withEngine(func(e engine.Engine) error {
		var err error
		channel, err = c.broadcast.Create(e)
		return err
	})
	return channel, err
}

// JoinGroupAudioChannel joins an existing group audio channel using opaque
// join data supplied by the inviting peer.
func (c *Controller) JoinGroupAudioChannel(peer uint32, joinData []byte) (int, error) {
	if len(joinData) == 0 {
		// Validated before taking the engine lock so the failure is
		// reported without any native call.
		return -1, fmt.Errorf("%w: join data is required", engine.ErrInvalidArgument)
	}
	channel := -1
	err := c.withEngine(func(e engine.Engine) error {
		var err error
		channel, err = c.broadcast.Join(e, peer, joinData)
		return err
	})
	return channel, err
}

// SendGroupAudio broadcasts one audio frame to all members of a channel.
func (c *Controller) SendGroupAudio(channel int, pcm []int16, samplesPerFrame int, channels uint8, samplingRate uint32) error {
	err := c.withEngine(func(e engine.Engine) error {
		return c.broadcast.Send(e, channel, pcm, samplesPerFrame, channels, samplingRate)
	})
	if err != nil {
		return err
	}
	c.metrics.groupFramesSent.Inc()
	return nil
}

// subscribed maps the dispatcher's closed sentinel to ErrDisposed, covering
// a Kill that lands between the killed check and the subscribe call.
func (c *Controller) subscribed(id uint64) (uint64, error) {
	if id == 0 {
		return 0, engine.ErrDisposed
	}
	return id, nil
}

// OnCallRequest registers an observer for incoming call requests and
// returns its registration id.
func (c *Controller) OnCallRequest(fn func(event.CallRequest)) (uint64, error) {
	if c.killed.Load() {
		return 0, engine.ErrDisposed
	}
	return c.subscribed(c.dispatcher.SubscribeCallRequest(fn))
}

// OnCallState registers an observer for call state changes.
func (c *Controller) OnCallState(fn func(event.StateChange)) (uint64, error) {
	if c.killed.Load() {
		return 0, engine.ErrDisposed
	}
	return c.subscribed(c.dispatcher.SubscribeCallState(fn))
}

// OnAudioBitrate registers an observer for audio bit rate changes.
func (c *Controller) OnAudioBitrate(fn func(event.AudioBitrate)) (uint64, error) {
	if c.killed.Load() {
		return 0, engine.ErrDisposed
	}
	return c.subscribed(c.dispatcher.SubscribeAudioBitrate(fn))
}

// OnVideoBitrate registers an observer for video bit rate changes.
func (c *Controller) OnVideoBitrate(fn func(event.VideoBitrate)) (uint64, error) {
	if c.killed.Load() {
		return 0, engine.ErrDisposed
	}
	return c.subscribed(c.dispatcher.SubscribeVideoBitrate(fn))
}

// OnAudioFrame registers an observer for received audio frames. Frame
// buffers are only valid for the duration of the callback.
func (c *Controller) OnAudioFrame(fn func(event.AudioFrame)) (uint64, error) {
	if c.killed.Load() {
		return 0, engine.ErrDisposed
	}
	return c.subscribed(c.dispatcher.SubscribeAudioFrame(fn))
}

// OnVideoFrame registers an observer for received video frames. Plane
// buffers are only valid for the duration of the callback.
func (c *Controller) OnVideoFrame(fn func(event.VideoFrame)) (uint64, error) {
	if c.killed.Load() {
		return 0, engine.ErrDisposed
	}
	return c.subscribed(c.dispatcher.SubscribeVideoFrame(fn))
}

// OnGroupAudio registers an observer for group audio frames.
func (c *Controller) OnGroupAudio(fn func(event.GroupAudioFrame)) (uint64, error) {
	if c.killed.Load() {
		return 0, engine.ErrDisposed
	}
	return c.subscribed(c.dispatcher.SubscribeGroupAudio(fn))
}

// Unsubscribe removes one observer registration. It reports whether a
// matching entry was removed; after Kill it always reports false and never
// touches the engine.
func (c *Controller) Unsubscribe(cap event.Capability, id uint64) bool {
	return c.dispatcher.Unsubscribe(cap, id)
}

// Kill tears the controller down: the iteration loop is cancelled and
// joined first, then the engine handle is released exactly once and the
// group callback registry is cleared. Kill is idempotent; every operation
// after it returns ErrDisposed.
func (c *Controller) Kill() {
	if !c.killed.CompareAndSwap(false, true) {
		return
	}

	c.log.WithFields(logrus.Fields{
		"function": "Kill",
	}).Info("Tearing down call session controller")

	// Phase one: no iterate call may occur after release begins.
	c.Stop()

	// The dispatcher must go quiet while the engine is still valid: Close
	// disarms every hook and blocks later subscribe/unsubscribe traffic
	// from reaching the released handle.
	c.dispatcher.Close()

	// Phase two: release the handle.
	c.engMu.Lock()
	if c.eng != nil {
		c.eng.Release()
		c.eng = nil
	}
	c.engMu.Unlock()

	c.broadcast.Clear()

	c.log.WithFields(logrus.Fields{
		"function": "Kill",
	}).Info("Controller destroyed")
}
