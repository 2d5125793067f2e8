package event

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/avsession/engine"
)

// observer is one (id, callback) registration. The callback is stored as a
// typed function value and asserted back at the dispatch site.
type observer struct {
	id uint64
	fn interface{}
}

// Dispatcher maps native notifications to structured payloads and fans them
// out to observers, registering the engine hook for a capability only while
// that capability has at least one observer.
//
// Observer lists are snapshotted before dispatch: subscribing or
// unsubscribing from inside a callback affects only subsequent
// notifications, never the one in flight.
//
// Close disables the dispatcher permanently; it must be called before the
// engine handle is released so no hook registration can reach a dead
// engine.
type Dispatcher struct {
	eng engine.Engine
	log *logrus.Entry

	// armMu serializes hook arm/disarm so the engine sees registration
	// changes in subscription order, and guards closed so no arm or
	// disarm can race Close.
	armMu  sync.Mutex
	closed bool

	mu        sync.Mutex
	observers [capCount][]observer
	nextID    uint64

	// taps are internal per-capability listeners that ride along with
	// dispatch but do not count toward hook registration.
	taps [capCount]func(payload interface{})

	// Optional counters wired by the controller.
	onDispatch func(cap Capability)
	onFault    func(cap Capability)
}

// NewDispatcher creates a dispatcher bound to an engine. The engine's hook
// registration methods must be safe to call concurrently with IterateOnce,
// per the engine contract.
func NewDispatcher(eng engine.Engine, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		eng:    eng,
		log:    log,
		nextID: 1,
	}
}

// SetCounters wires optional dispatch and fault counters. Must be called
// before any subscription.
func (d *Dispatcher) SetCounters(onDispatch, onFault func(cap Capability)) {
	d.onDispatch = onDispatch
	d.onFault = onFault
}

// SetTap installs an internal listener for a capability. A tap runs before
// the observer fan-out on every notification of that capability but does
// not trigger native hook registration on its own. Must be called before
// any subscription.
func (d *Dispatcher) SetTap(cap Capability, tap func(payload interface{})) {
	d.taps[cap] = tap
}

// SubscribeCallRequest registers an observer for incoming call requests.
func (d *Dispatcher) SubscribeCallRequest(fn func(CallRequest)) uint64 {
	return d.subscribe(CapCallRequest, fn)
}

// SubscribeCallState registers an observer for call state changes.
func (d *Dispatcher) SubscribeCallState(fn func(StateChange)) uint64 {
	return d.subscribe(CapCallState, fn)
}

// SubscribeAudioBitrate registers an observer for audio bit rate changes.
func (d *Dispatcher) SubscribeAudioBitrate(fn func(AudioBitrate)) uint64 {
	return d.subscribe(CapAudioBitrate, fn)
}

// SubscribeVideoBitrate registers an observer for video bit rate changes.
func (d *Dispatcher) SubscribeVideoBitrate(fn func(VideoBitrate)) uint64 {
	return d.subscribe(CapVideoBitrate, fn)
}

// SubscribeAudioFrame registers an observer for received audio frames.
func (d *Dispatcher) SubscribeAudioFrame(fn func(AudioFrame)) uint64 {
	return d.subscribe(CapAudioFrame, fn)
}

// SubscribeVideoFrame registers an observer for received video frames.
func (d *Dispatcher) SubscribeVideoFrame(fn func(VideoFrame)) uint64 {
	return d.subscribe(CapVideoFrame, fn)
}

// SubscribeGroupAudio registers an observer for group audio frames.
// The group-audio capability has no native hook to arm: the engine binds
// its callbacks at channel create/join time and the group package feeds
// DispatchGroupAudio directly.
func (d *Dispatcher) SubscribeGroupAudio(fn func(GroupAudioFrame)) uint64 {
	return d.subscribe(CapGroupAudio, fn)
}

// Unsubscribe removes the registration with the given id from a capability.
// It reports whether a matching entry was removed. Removing the last
// observer unregisters the capability's native hook. After Close it always
// reports false without touching the engine.
func (d *Dispatcher) Unsubscribe(cap Capability, id uint64) bool {
	d.armMu.Lock()
	defer d.armMu.Unlock()

	if d.closed {
		return false
	}

	d.mu.Lock()
	list := d.observers[cap]
	removed := false
	for i, o := range list {
		if o.id == id {
			d.observers[cap] = append(list[:i:i], list[i+1:]...)
			removed = true
			break
		}
	}
	remaining := len(d.observers[cap])
	d.mu.Unlock()

	if removed && remaining == 0 {
		d.disarm(cap)
		d.log.WithFields(logrus.Fields{
			"capability": cap.String(),
		}).Debug("Last observer removed, native hook unregistered")
	}
	return removed
}

// ObserverCount reports the current number of observers for a capability.
func (d *Dispatcher) ObserverCount(cap Capability) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.observers[cap])
}

// Close unregisters every armed hook and disables the dispatcher: later
// subscribe and unsubscribe calls no-op without touching the engine. The
// engine handle must still be valid when Close runs. Idempotent.
func (d *Dispatcher) Close() {
	d.armMu.Lock()
	defer d.armMu.Unlock()

	if d.closed {
		return
	}
	d.closed = true

	d.mu.Lock()
	var armed []Capability
	for cap := Capability(0); cap < capCount; cap++ {
		if len(d.observers[cap]) > 0 {
			armed = append(armed, cap)
		}
		d.observers[cap] = nil
	}
	d.mu.Unlock()

	for _, cap := range armed {
		d.disarm(cap)
	}

	d.log.WithFields(logrus.Fields{
		"disarmed": len(armed),
	}).Debug("Dispatcher closed")
}

// subscribe appends an observer and arms the capability's native hook on
// the 0 to 1 transition. Ids start at 1; 0 is returned only when the
// dispatcher has been closed.
func (d *Dispatcher) subscribe(cap Capability, fn interface{}) uint64 {
	d.armMu.Lock()
	defer d.armMu.Unlock()

	if d.closed {
		return 0
	}

	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.observers[cap] = append(d.observers[cap], observer{id: id, fn: fn})
	count := len(d.observers[cap])
	d.mu.Unlock()

	if count == 1 {
		d.arm(cap)
		d.log.WithFields(logrus.Fields{
			"capability": cap.String(),
		}).Debug("First observer added, native hook registered")
	}
	return id
}

// arm registers the capability's native hook with the engine. Each hook is
// allocated once per arming and looks up the current observer list on
// every notification.
func (d *Dispatcher) arm(cap Capability) {
	switch cap {
	case CapCallRequest:
		d.eng.HookCallRequest(func(peer uint32, audioEnabled, videoEnabled bool) {
			d.DispatchCallRequest(CallRequest{Peer: peer, AudioEnabled: audioEnabled, VideoEnabled: videoEnabled})
		})
	case CapCallState:
		d.eng.HookCallState(func(peer uint32, state engine.CallState) {
			d.DispatchCallState(StateChange{Peer: peer, State: state})
		})
	case CapAudioBitrate:
		d.eng.HookAudioBitrate(func(peer, bitRate uint32) {
			d.DispatchAudioBitrate(AudioBitrate{Peer: peer, BitRate: bitRate})
		})
	case CapVideoBitrate:
		d.eng.HookVideoBitrate(func(peer, bitRate uint32) {
			d.DispatchVideoBitrate(VideoBitrate{Peer: peer, BitRate: bitRate})
		})
	case CapAudioFrame:
		d.eng.HookAudioFrame(func(peer uint32, pcm []int16, sampleCount int, channels uint8, samplingRate uint32) {
			d.DispatchAudioFrame(AudioFrame{
				Peer:         peer,
				PCM:          pcm,
				SampleCount:  sampleCount,
				Channels:     channels,
				SamplingRate: samplingRate,
			})
		})
	case CapVideoFrame:
		d.eng.HookVideoFrame(func(peer uint32, width, height uint16, y, u, v []byte, yStride, uStride, vStride int) {
			d.DispatchVideoFrame(VideoFrame{
				Peer:  peer,
				Width: width, Height: height,
				Y: y, U: u, V: v,
				YStride: yStride, UStride: uStride, VStride: vStride,
			})
		})
	case CapGroupAudio:
		// No native hook: group callbacks are bound at channel create/join.
	}
}

func (d *Dispatcher) disarm(cap Capability) {
	switch cap {
	case CapCallRequest:
		d.eng.HookCallRequest(nil)
	case CapCallState:
		d.eng.HookCallState(nil)
	case CapAudioBitrate:
		d.eng.HookAudioBitrate(nil)
	case CapVideoBitrate:
		d.eng.HookVideoBitrate(nil)
	case CapAudioFrame:
		d.eng.HookAudioFrame(nil)
	case CapVideoFrame:
		d.eng.HookVideoFrame(nil)
	case CapGroupAudio:
		// No native hook to unregister.
	}
}

// snapshot copies the observer list for a capability and runs its tap.
func (d *Dispatcher) snapshot(cap Capability, payload interface{}) []observer {
	d.mu.Lock()
	list := append([]observer(nil), d.observers[cap]...)
	d.mu.Unlock()

	if tap := d.taps[cap]; tap != nil {
		tap(payload)
	}
	if d.onDispatch != nil {
		d.onDispatch(cap)
	}
	return list
}

// invoke runs one observer, isolating panics so a fault in observer k
// never prevents observer k+1 from running.
func (d *Dispatcher) invoke(cap Capability, id uint64, call func()) {
	defer func() {
		if r := recover(); r != nil {
			if d.onFault != nil {
				d.onFault(cap)
			}
			d.log.WithFields(logrus.Fields{
				"capability":  cap.String(),
				"observer_id": id,
				"panic":       r,
			}).Warn("Observer panicked during dispatch")
		}
	}()
	call()
}

// DispatchCallRequest fans a call request out to its observers.
func (d *Dispatcher) DispatchCallRequest(ev CallRequest) {
	for _, o := range d.snapshot(CapCallRequest, ev) {
		fn := o.fn.(func(CallRequest))
		d.invoke(CapCallRequest, o.id, func() { fn(ev) })
	}
}

// DispatchCallState fans a state change out to its observers.
func (d *Dispatcher) DispatchCallState(ev StateChange) {
	for _, o := range d.snapshot(CapCallState, ev) {
		fn := o.fn.(func(StateChange))
		d.invoke(CapCallState, o.id, func() { fn(ev) })
	}
}

// DispatchAudioBitrate fans an audio bit rate change out to its observers.
func (d *Dispatcher) DispatchAudioBitrate(ev AudioBitrate) {
	for _, o := range d.snapshot(CapAudioBitrate, ev) {
		fn := o.fn.(func(AudioBitrate))
		d.invoke(CapAudioBitrate, o.id, func() { fn(ev) })
	}
}

// DispatchVideoBitrate fans a video bit rate change out to its observers.
func (d *Dispatcher) DispatchVideoBitrate(ev VideoBitrate) {
	for _, o := range d.snapshot(CapVideoBitrate, ev) {
		fn := o.fn.(func(VideoBitrate))
		d.invoke(CapVideoBitrate, o.id, func() { fn(ev) })
	}
}

// DispatchAudioFrame fans an audio frame out to its observers. The frame's
// PCM buffer is only valid until this call returns.
func (d *Dispatcher) DispatchAudioFrame(ev AudioFrame) {
	for _, o := range d.snapshot(CapAudioFrame, ev) {
		fn := o.fn.(func(AudioFrame))
		d.invoke(CapAudioFrame, o.id, func() { fn(ev) })
	}
}

// DispatchVideoFrame fans a video frame out to its observers. The frame's
// plane buffers are only valid until this call returns.
func (d *Dispatcher) DispatchVideoFrame(ev VideoFrame) {
	for _, o := range d.snapshot(CapVideoFrame, ev) {
		fn := o.fn.(func(VideoFrame))
		d.invoke(CapVideoFrame, o.id, func() { fn(ev) })
	}
}

// DispatchGroupAudio fans a group audio frame out to its observers.
func (d *Dispatcher) DispatchGroupAudio(ev GroupAudioFrame) {
	for _, o := range d.snapshot(CapGroupAudio, ev) {
		fn := o.fn.(func(GroupAudioFrame))
		d.invoke(CapGroupAudio, o.id, func() { fn(ev) })
	}
}
