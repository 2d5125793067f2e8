package event

import (
	"testing"

	"github.com/opd-ai/avsession/engine"
	"github.com/opd-ai/avsession/engine/enginetest"
)

// TestLazyHookRegistration verifies that subscribing once and then
// unsubscribing once produces exactly one registration and one
// unregistration with the engine, in that order.
func TestLazyHookRegistration(t *testing.T) {
	eng := enginetest.New()
	d := NewDispatcher(eng, nil)

	id := d.SubscribeCallRequest(func(CallRequest) {})

	changes := eng.HookLogFor("call-request")
	if len(changes) != 1 || !changes[0].Registered {
		t.Fatalf("Expected one registration after first subscribe, got %v", changes)
	}

	if !d.Unsubscribe(CapCallRequest, id) {
		t.Fatal("Unsubscribe should report removal")
	}

	changes = eng.HookLogFor("call-request")
	if len(changes) != 2 {
		t.Fatalf("Expected registration then unregistration, got %v", changes)
	}
	if !changes[0].Registered || changes[1].Registered {
		t.Errorf("Expected register followed by unregister, got %v", changes)
	}
}

// TestLazyRegistrationIndependentPerCapability verifies that subscribe and
// unsubscribe traffic on other capabilities does not affect a capability's
// registration count.
func TestLazyRegistrationIndependentPerCapability(t *testing.T) {
	eng := enginetest.New()
	d := NewDispatcher(eng, nil)

	id := d.SubscribeCallState(func(StateChange) {})

	// Intervening churn on other capabilities.
	other := d.SubscribeAudioFrame(func(AudioFrame) {})
	d.SubscribeVideoFrame(func(VideoFrame) {})
	d.Unsubscribe(CapAudioFrame, other)

	d.Unsubscribe(CapCallState, id)

	changes := eng.HookLogFor("call-state")
	if len(changes) != 2 || !changes[0].Registered || changes[1].Registered {
		t.Errorf("Expected exactly one register and one unregister for call-state, got %v", changes)
	}
}

// TestSecondObserverDoesNotReregister verifies the hook is registered only
// on the 0->1 transition and unregistered only on the 1->0 transition.
func TestSecondObserverDoesNotReregister(t *testing.T) {
	eng := enginetest.New()
	d := NewDispatcher(eng, nil)

	first := d.SubscribeCallRequest(func(CallRequest) {})
	second := d.SubscribeCallRequest(func(CallRequest) {})

	if got := len(eng.HookLogFor("call-request")); got != 1 {
		t.Fatalf("Expected a single registration for two observers, got %d changes", got)
	}

	d.Unsubscribe(CapCallRequest, first)
	if got := len(eng.HookLogFor("call-request")); got != 1 {
		t.Fatalf("Expected no unregistration while an observer remains, got %d changes", got)
	}

	d.Unsubscribe(CapCallRequest, second)
	changes := eng.HookLogFor("call-request")
	if len(changes) != 2 || changes[1].Registered {
		t.Errorf("Expected unregistration after last observer left, got %v", changes)
	}
}

// TestDispatchOrderAndFaultIsolation verifies that one notification
// reaches all observers in registration order and that a panic in one
// observer does not prevent the remaining observers from running.
func TestDispatchOrderAndFaultIsolation(t *testing.T) {
	eng := enginetest.New()
	d := NewDispatcher(eng, nil)

	var order []int
	d.SubscribeCallRequest(func(CallRequest) { order = append(order, 1) })
	d.SubscribeCallRequest(func(CallRequest) {
		order = append(order, 2)
		panic("observer failure")
	})
	d.SubscribeCallRequest(func(CallRequest) { order = append(order, 3) })

	eng.FireCallRequest(7, true, false)

	if len(order) != 3 {
		t.Fatalf("Expected all 3 observers to run, got %v", order)
	}
	for i, want := range []int{1, 2, 3} {
		if order[i] != want {
			t.Errorf("Observer %d ran out of order: got sequence %v", want, order)
		}
	}
}

// TestDispatchPayloadConversion verifies native primitive fields are
// converted into the structured payload before dispatch.
func TestDispatchPayloadConversion(t *testing.T) {
	eng := enginetest.New()
	d := NewDispatcher(eng, nil)

	var got StateChange
	d.SubscribeCallState(func(ev StateChange) { got = ev })

	eng.FireCallState(42, engine.CallStateSendingAudio|engine.CallStateAcceptingAudio)

	if got.Peer != 42 {
		t.Errorf("Expected peer 42, got %d", got.Peer)
	}
	if got.State&engine.CallStateSendingAudio == 0 {
		t.Errorf("Expected sending-audio bit in state, got %v", got.State)
	}
}

// TestAudioFrameDispatch verifies frame fields reach observers intact.
func TestAudioFrameDispatch(t *testing.T) {
	eng := enginetest.New()
	d := NewDispatcher(eng, nil)

	var got AudioFrame
	d.SubscribeAudioFrame(func(ev AudioFrame) { got = ev })

	pcm := []int16{1, -2, 3, -4}
	eng.FireAudioFrame(9, pcm, 2, 2, 48000)

	if got.Peer != 9 || got.SampleCount != 2 || got.Channels != 2 || got.SamplingRate != 48000 {
		t.Errorf("Unexpected frame header: %+v", got)
	}
	if len(got.PCM) != 4 || got.PCM[0] != 1 || got.PCM[3] != -4 {
		t.Errorf("Unexpected PCM payload: %v", got.PCM)
	}
}

// TestVideoFrameDispatch verifies plane buffers and strides are passed
// through to observers.
func TestVideoFrameDispatch(t *testing.T) {
	eng := enginetest.New()
	d := NewDispatcher(eng, nil)

	var got VideoFrame
	d.SubscribeVideoFrame(func(ev VideoFrame) { got = ev })

	y := []byte{1, 2, 3, 4}
	u := []byte{5}
	v := []byte{6}
	eng.FireVideoFrame(3, 2, 2, y, u, v, 2, 1, 1)

	if got.Width != 2 || got.Height != 2 || got.YStride != 2 {
		t.Errorf("Unexpected frame geometry: %+v", got)
	}
	if len(got.Y) != 4 || len(got.U) != 1 || len(got.V) != 1 {
		t.Errorf("Unexpected plane sizes: y=%d u=%d v=%d", len(got.Y), len(got.U), len(got.V))
	}
}

// TestReentrantUnsubscribeDuringDispatch verifies the snapshot policy: an
// observer removing itself mid-dispatch still lets the in-flight
// notification reach everyone, and only subsequent notifications skip it.
func TestReentrantUnsubscribeDuringDispatch(t *testing.T) {
	eng := enginetest.New()
	d := NewDispatcher(eng, nil)

	var firstRuns, secondRuns int
	var firstID uint64
	firstID = d.SubscribeCallRequest(func(CallRequest) {
		firstRuns++
		d.Unsubscribe(CapCallRequest, firstID)
	})
	d.SubscribeCallRequest(func(CallRequest) { secondRuns++ })

	eng.FireCallRequest(1, true, true)
	eng.FireCallRequest(1, true, true)

	if firstRuns != 1 {
		t.Errorf("Self-removing observer should run exactly once, ran %d times", firstRuns)
	}
	if secondRuns != 2 {
		t.Errorf("Remaining observer should see both notifications, saw %d", secondRuns)
	}
}

// TestReentrantSubscribeDuringDispatch verifies a subscription made inside
// a callback only takes effect from the next notification.
func TestReentrantSubscribeDuringDispatch(t *testing.T) {
	eng := enginetest.New()
	d := NewDispatcher(eng, nil)

	var lateRuns int
	var once bool
	d.SubscribeCallRequest(func(CallRequest) {
		if !once {
			once = true
			d.SubscribeCallRequest(func(CallRequest) { lateRuns++ })
		}
	})

	eng.FireCallRequest(1, false, false)
	if lateRuns != 0 {
		t.Fatalf("Late observer must not see the in-flight notification, saw %d", lateRuns)
	}

	eng.FireCallRequest(1, false, false)
	if lateRuns != 1 {
		t.Errorf("Late observer should see the next notification, saw %d", lateRuns)
	}
}

// TestGroupAudioHasNoNativeHook verifies the group-audio capability never
// touches the engine's hook registration surface.
func TestGroupAudioHasNoNativeHook(t *testing.T) {
	eng := enginetest.New()
	d := NewDispatcher(eng, nil)

	id := d.SubscribeGroupAudio(func(GroupAudioFrame) {})
	d.Unsubscribe(CapGroupAudio, id)

	if got := len(eng.HookLog()); got != 0 {
		t.Errorf("Group audio subscriptions must not register native hooks, saw %d changes", got)
	}
}

// TestUnsubscribeUnknownID verifies removal of a non-existent registration
// reports false and leaves observers untouched.
func TestUnsubscribeUnknownID(t *testing.T) {
	eng := enginetest.New()
	d := NewDispatcher(eng, nil)

	d.SubscribeCallRequest(func(CallRequest) {})
	if d.Unsubscribe(CapCallRequest, 9999) {
		t.Error("Unsubscribe of unknown id should report false")
	}
	if d.ObserverCount(CapCallRequest) != 1 {
		t.Error("Unsubscribe of unknown id must not remove observers")
	}
}

// TestTapRunsWithoutObservers verifies taps see notifications dispatched
// by other sources even when no external observer is subscribed, and do
// not arm native hooks on their own.
func TestTapRunsWithoutObservers(t *testing.T) {
	eng := enginetest.New()
	d := NewDispatcher(eng, nil)

	var tapped int
	d.SetTap(CapCallState, func(interface{}) { tapped++ })

	d.DispatchCallState(StateChange{Peer: 1, State: engine.CallStateFinished})

	if tapped != 1 {
		t.Errorf("Tap should run once per notification, ran %d times", tapped)
	}
	if got := len(eng.HookLog()); got != 0 {
		t.Errorf("Taps must not arm native hooks, saw %d changes", got)
	}
}

// TestCloseDisarmsAndBlocksMutation verifies Close unregisters armed hooks
// while the engine handle is still valid and turns later subscribe and
// unsubscribe calls into no-ops that never reach the engine.
func TestCloseDisarmsAndBlocksMutation(t *testing.T) {
	eng := enginetest.New()
	d := NewDispatcher(eng, nil)

	id := d.SubscribeAudioFrame(func(AudioFrame) {})
	d.Close()

	changes := eng.HookLogFor("audio-frame")
	if len(changes) != 2 || changes[1].Registered {
		t.Fatalf("Expected Close to unregister the armed hook, got %v", changes)
	}

	if got := d.SubscribeCallRequest(func(CallRequest) {}); got != 0 {
		t.Errorf("Subscribe after Close should return 0, got %d", got)
	}
	if d.Unsubscribe(CapAudioFrame, id) {
		t.Error("Unsubscribe after Close should report false")
	}
	if got := len(eng.HookLog()); got != 2 {
		t.Errorf("No hook traffic may reach the engine after Close, saw %d changes", got)
	}
}

// TestCloseIsIdempotent verifies a second Close produces no extra engine
// traffic.
func TestCloseIsIdempotent(t *testing.T) {
	eng := enginetest.New()
	d := NewDispatcher(eng, nil)

	d.SubscribeCallState(func(StateChange) {})
	d.Close()
	d.Close()

	if got := len(eng.HookLog()); got != 2 {
		t.Errorf("Expected one register and one unregister, saw %d changes", got)
	}
}

// TestCapabilityString covers the log/metric label names.
func TestCapabilityString(t *testing.T) {
	want := map[Capability]string{
		CapCallRequest:  "call-request",
		CapCallState:    "call-state",
		CapAudioBitrate: "audio-bitrate",
		CapVideoBitrate: "video-bitrate",
		CapAudioFrame:   "audio-frame",
		CapVideoFrame:   "video-frame",
		CapGroupAudio:   "group-audio",
	}
	for cap, name := range want {
		if cap.String() != name {
			t.Errorf("Capability %d: expected %q, got %q", cap, name, cap.String())
		}
	}
}
