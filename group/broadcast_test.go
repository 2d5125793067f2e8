package group

import (
	"errors"
	"testing"

	"github.com/opd-ai/avsession/engine"
	"github.com/opd-ai/avsession/engine/enginetest"
	"github.com/opd-ai/avsession/event"
)

func newBroadcast(eng *enginetest.Engine) *Broadcast {
	return New(event.NewDispatcher(eng, nil), nil)
}

// TestCreateRetainsCallback verifies a successful create appends the
// generated callback to the retained registry.
func TestCreateRetainsCallback(t *testing.T) {
	eng := enginetest.New()
	b := newBroadcast(eng)

	channel, err := b.Create(eng)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if channel != 0 {
		t.Errorf("Expected channel 0 from stub, got %d", channel)
	}
	if b.Retained() != 1 {
		t.Errorf("Expected one retained callback, got %d", b.Retained())
	}
}

// TestCreateFailureRetainsNothing verifies an engine rejection leaves the
// registry untouched.
func TestCreateFailureRetainsNothing(t *testing.T) {
	eng := enginetest.New()
	eng.CreateResult = -1
	b := newBroadcast(eng)

	channel, err := b.Create(eng)
	if !errors.Is(err, ErrChannelCreate) {
		t.Fatalf("Expected ErrChannelCreate, got %v", err)
	}
	if channel != -1 {
		t.Errorf("Expected channel -1 on failure, got %d", channel)
	}
	if b.Retained() != 0 {
		t.Errorf("Failed create must not retain callbacks, got %d", b.Retained())
	}
}

// TestJoinRequiresJoinData verifies absent join data fails before the
// engine's join primitive is ever called.
func TestJoinRequiresJoinData(t *testing.T) {
	eng := enginetest.New()
	b := newBroadcast(eng)

	channel, err := b.Join(eng, 5, nil)
	if !errors.Is(err, engine.ErrInvalidArgument) {
		t.Fatalf("Expected ErrInvalidArgument, got %v", err)
	}
	if channel != -1 {
		t.Errorf("Expected channel -1, got %d", channel)
	}
	if len(eng.Joins()) != 0 {
		t.Error("Join primitive must not be called with absent join data")
	}
}

// TestJoinRetainsCallback verifies a successful join records the join
// arguments and retains the callback.
func TestJoinRetainsCallback(t *testing.T) {
	eng := enginetest.New()
	eng.JoinResult = 3
	b := newBroadcast(eng)

	joinData := []byte{0xde, 0xad}
	channel, err := b.Join(eng, 5, joinData)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if channel != 3 {
		t.Errorf("Expected channel 3, got %d", channel)
	}

	joins := eng.Joins()
	if len(joins) != 1 || joins[0].Peer != 5 {
		t.Fatalf("Expected one join for peer 5, got %v", joins)
	}
	if b.Retained() != 1 {
		t.Errorf("Expected one retained callback, got %d", b.Retained())
	}
}

// TestSendTranslatesZeroReturn verifies the engine's zero-return success
// convention and that argument values reach the engine unchanged.
func TestSendTranslatesZeroReturn(t *testing.T) {
	eng := enginetest.New()
	b := newBroadcast(eng)

	if _, err := b.Create(eng); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	pcm := []int16{1, 2, 3, 4}
	if err := b.Send(eng, 0, pcm, 2, 2, 48000); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	sends := eng.GroupSends()
	if len(sends) != 1 {
		t.Fatalf("Expected exactly one group send, got %d", len(sends))
	}
	got := sends[0]
	if got.Channel != 0 || got.SamplesPerFrame != 2 || got.Channels != 2 || got.SamplingRate != 48000 {
		t.Errorf("Unexpected send arguments: %+v", got)
	}
	if len(got.PCM) != 4 || got.PCM[0] != 1 || got.PCM[3] != 4 {
		t.Errorf("Unexpected PCM payload: %v", got.PCM)
	}
}

// TestSendNonZeroReturnFails verifies a non-zero engine return surfaces
// as an error.
func TestSendNonZeroReturnFails(t *testing.T) {
	eng := enginetest.New()
	eng.GroupSendResult = -1
	b := newBroadcast(eng)

	err := b.Send(eng, 0, []int16{1, 2}, 1, 2, 48000)
	if !errors.Is(err, ErrSendFailed) {
		t.Errorf("Expected ErrSendFailed, got %v", err)
	}
}

// TestSendValidatesBufferShape verifies shape mismatches fail before any
// engine call.
func TestSendValidatesBufferShape(t *testing.T) {
	eng := enginetest.New()
	b := newBroadcast(eng)

	tests := []struct {
		name            string
		pcm             []int16
		samplesPerFrame int
		channels        uint8
	}{
		{"empty buffer", nil, 0, 1},
		{"zero channels", []int16{1, 2}, 2, 0},
		{"length mismatch", []int16{1, 2, 3}, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Send(eng, 0, tt.pcm, tt.samplesPerFrame, tt.channels, 48000)
			if !errors.Is(err, engine.ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument, got %v", err)
			}
		})
	}
	if len(eng.GroupSends()) != 0 {
		t.Error("Invalid frames must never reach the engine")
	}
}

// TestReceiveCallbackCopiesAndDispatches verifies the receive path copies
// the raw buffer and dispatches a structured group audio event.
func TestReceiveCallbackCopiesAndDispatches(t *testing.T) {
	eng := enginetest.New()
	d := event.NewDispatcher(eng, nil)
	b := New(d, nil)

	var got event.GroupAudioFrame
	d.SubscribeGroupAudio(func(ev event.GroupAudioFrame) { got = ev })

	if _, err := b.Create(eng); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	raw := []int16{10, 20, 30, 40}
	eng.FireGroupAudio(0, 0, 9, raw, 2, 48000)

	if got.Channel != 0 || got.Peer != 9 || got.Channels != 2 || got.SamplingRate != 48000 {
		t.Errorf("Unexpected group event header: %+v", got)
	}
	if len(got.PCM) != 4 || got.PCM[2] != 30 {
		t.Fatalf("Unexpected PCM payload: %v", got.PCM)
	}

	// Mutating the engine-owned buffer must not affect the dispatched copy.
	raw[2] = 0
	if got.PCM[2] != 30 {
		t.Error("Dispatched PCM must be a copy of the engine buffer")
	}
}

// TestRegistryNeverShrinksOnHappyPath verifies entries accumulate across
// create/join and survive until Clear.
func TestRegistryNeverShrinksOnHappyPath(t *testing.T) {
	eng := enginetest.New()
	b := newBroadcast(eng)

	if _, err := b.Create(eng); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	eng.JoinResult = 1
	if _, err := b.Join(eng, 2, []byte{1}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	eng.JoinResult = 0
	if _, err := b.Join(eng, 3, []byte{2}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if b.Retained() != 3 {
		t.Errorf("Expected 3 retained callbacks, got %d", b.Retained())
	}

	b.Clear()
	if b.Retained() != 0 {
		t.Errorf("Clear must empty the registry, got %d", b.Retained())
	}
}
