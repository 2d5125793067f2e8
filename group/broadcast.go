// Package group implements the simplified group audio broadcast mode in
// which many peers share one audio channel.
//
// The engine may invoke a channel's receive callback for the lifetime of
// the whole engine instance, so every callback handed to the engine at
// channel create/join time is retained in a registry owned by Broadcast.
// Registry entries are never removed on the happy path; the registry is
// cleared only at full controller teardown.
package group

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/avsession/engine"
	"github.com/opd-ai/avsession/event"
)

// Sentinel errors for group operations.
var (
	// ErrChannelCreate indicates the engine refused to create a channel.
	ErrChannelCreate = errors.New("group channel creation failed")

	// ErrChannelJoin indicates the engine refused to join a channel.
	ErrChannelJoin = errors.New("group channel join failed")

	// ErrSendFailed indicates the engine rejected a group audio frame.
	ErrSendFailed = errors.New("group audio send failed")
)

// Broadcast manages group audio channels and owns the retained callback
// registry. The engine handle is passed in per call by the controller,
// which serializes engine access.
type Broadcast struct {
	dispatcher *event.Dispatcher
	log        *logrus.Entry

	mu sync.Mutex
	// retained keeps every callback the engine accepted alive until
	// Clear. Keyed by channel id; a slice per id tolerates the engine
	// reusing an id across create and join.
	retained map[int][]engine.GroupAudioHook
}

// New creates a Broadcast that dispatches received group audio through the
// given dispatcher.
func New(dispatcher *event.Dispatcher, log *logrus.Entry) *Broadcast {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Broadcast{
		dispatcher: dispatcher,
		log:        log,
		retained:   make(map[int][]engine.GroupAudioHook),
	}
}

// Create creates a new group audio channel on the engine and retains the
// generated receive callback. Returns the engine-assigned channel id.
func (b *Broadcast) Create(eng engine.Engine) (int, error) {
	callback := b.receiveCallback()
	channel := eng.CreateGroupChannel(callback)
	if channel == -1 {
		b.log.WithFields(logrus.Fields{
			"function": "Create",
		}).Warn("Engine rejected group channel creation")
		return -1, ErrChannelCreate
	}

	b.retain(channel, callback)
	b.log.WithFields(logrus.Fields{
		"function": "Create",
		"channel":  channel,
	}).Info("Group audio channel created")
	return channel, nil
}

// Join joins an existing group audio channel using opaque join data from
// the inviting peer. Absent join data fails before any engine call.
func (b *Broadcast) Join(eng engine.Engine, peer uint32, joinData []byte) (int, error) {
	if len(joinData) == 0 {
		return -1, fmt.Errorf("%w: join data is required", engine.ErrInvalidArgument)
	}

	callback := b.receiveCallback()
	channel := eng.JoinGroupChannel(peer, joinData, callback)
	if channel == -1 {
		b.log.WithFields(logrus.Fields{
			"function": "Join",
			"peer":     peer,
		}).Warn("Engine rejected group channel join")
		return -1, ErrChannelJoin
	}

	b.retain(channel, callback)
	b.log.WithFields(logrus.Fields{
		"function": "Join",
		"peer":     peer,
		"channel":  channel,
	}).Info("Group audio channel joined")
	return channel, nil
}

// Send broadcasts one audio frame to all members of a channel. The PCM
// buffer length must equal samplesPerFrame*channels.
func (b *Broadcast) Send(eng engine.Engine, channel int, pcm []int16, samplesPerFrame int, channels uint8, samplingRate uint32) error {
	if len(pcm) == 0 {
		return fmt.Errorf("%w: sample buffer is required", engine.ErrInvalidArgument)
	}
	if channels == 0 {
		return fmt.Errorf("%w: channel count must be nonzero", engine.ErrInvalidArgument)
	}
	if len(pcm) != samplesPerFrame*int(channels) {
		return fmt.Errorf("%w: sample buffer length %d does not match %d samples x %d channels",
			engine.ErrInvalidArgument, len(pcm), samplesPerFrame, channels)
	}

	if code := eng.SendGroupAudio(channel, pcm, samplesPerFrame, channels, samplingRate); code != 0 {
		return fmt.Errorf("%w: engine returned %d", ErrSendFailed, code)
	}
	return nil
}

// Retained reports how many callback closures the registry currently owns.
func (b *Broadcast) Retained() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, hooks := range b.retained {
		n += len(hooks)
	}
	return n
}

// Clear drops the retained registry. Only valid at full teardown, after
// which the engine can no longer invoke the callbacks.
func (b *Broadcast) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	cleared := len(b.retained)
	b.retained = make(map[int][]engine.GroupAudioHook)
	if cleared > 0 {
		b.log.WithFields(logrus.Fields{
			"function": "Clear",
			"channels": cleared,
		}).Debug("Group callback registry cleared")
	}
}

func (b *Broadcast) retain(channel int, callback engine.GroupAudioHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retained[channel] = append(b.retained[channel], callback)
}

// receiveCallback builds the callback handed to the engine at create/join.
// The raw sample buffer is only valid during the engine's invocation, so
// it is copied before the structured event is dispatched.
func (b *Broadcast) receiveCallback() engine.GroupAudioHook {
	return func(channel int, peer uint32, pcm []int16, channels uint8, samplingRate uint32) {
		samples := make([]int16, len(pcm))
		copy(samples, pcm)

		b.dispatcher.DispatchGroupAudio(event.GroupAudioFrame{
			Channel:      channel,
			Peer:         peer,
			PCM:          samples,
			Channels:     channels,
			SamplingRate: samplingRate,
		})
	}
}
