// Package enginetest provides a scriptable in-memory implementation of the
// engine contract for tests. It records every operation it receives and
// lets tests inject result codes and fire notification hooks manually.
package enginetest

import (
	"sync"
	"time"

	"github.com/opd-ai/avsession/engine"
)

// HookChange records one hook registration or unregistration.
type HookChange struct {
	Capability string
	Registered bool
}

// CallArgs records one PlaceCall or AnswerCall invocation.
type CallArgs struct {
	Peer         uint32
	AudioBitRate uint32
	VideoBitRate uint32
}

// ControlArgs records one SendControl invocation.
type ControlArgs struct {
	Peer    uint32
	Control engine.CallControl
}

// BitrateArgs records one SetAudioBitRate or SetVideoBitRate invocation.
type BitrateArgs struct {
	Peer    uint32
	BitRate uint32
	Force   bool
}

// AudioFrameArgs records one SendAudioFrame invocation.
type AudioFrameArgs struct {
	Peer         uint32
	PCM          []int16
	SampleCount  int
	Channels     uint8
	SamplingRate uint32
}

// VideoFrameArgs records one SendVideoFrame invocation.
type VideoFrameArgs struct {
	Peer          uint32
	Width, Height uint16
	Y, U, V       []byte
}

// JoinArgs records one JoinGroupChannel invocation.
type JoinArgs struct {
	Peer     uint32
	JoinData []byte
}

// GroupSendArgs records one SendGroupAudio invocation.
type GroupSendArgs struct {
	Channel         int
	PCM             []int16
	SamplesPerFrame int
	Channels        uint8
	SamplingRate    uint32
}

// Engine is a stub engine. The zero value is not usable; use New.
//
// Scripted result fields may be set at any time; reads and writes are
// serialized by the stub's internal mutex via the accessor methods, but
// tests that configure results before exercising the code under test can
// assign the exported fields directly.
type Engine struct {
	mu sync.Mutex

	// Scripted results. Zero values mean success.
	IntervalValue   time.Duration
	CallResult      engine.CallErr
	AnswerResult    engine.AnswerErr
	ControlResult   engine.ControlErr
	BitrateResult   engine.BitrateErr
	SendResult      engine.SendErr
	CreateResult    int
	JoinResult      int
	GroupSendResult int

	// Recordings.
	iterations  int
	releases    int
	hookLog     []HookChange
	placeCalls  []CallArgs
	answers     []CallArgs
	controls    []ControlArgs
	audioRates  []BitrateArgs
	videoRates  []BitrateArgs
	audioFrames []AudioFrameArgs
	videoFrames []VideoFrameArgs
	joins       []JoinArgs
	groupSends  []GroupSendArgs

	// Registered hooks, fired via the Fire* methods.
	callRequestHook engine.CallRequestHook
	callStateHook   engine.CallStateHook
	audioRateHook   engine.BitrateHook
	videoRateHook   engine.BitrateHook
	audioFrameHook  engine.AudioFrameHook
	videoFrameHook  engine.VideoFrameHook

	// Group callbacks retained by create/join, fired via FireGroupAudio.
	groupCallbacks []engine.GroupAudioHook
}

// New returns a stub engine that succeeds on every operation and reports
// a 20ms iteration interval.
func New() *Engine {
	return &Engine{IntervalValue: 20 * time.Millisecond}
}

// Create is an engine.CreateFunc that always hands out this stub,
// regardless of identity.
func (e *Engine) Create(engine.Identity) (engine.Engine, error) {
	return e, nil
}

func (e *Engine) IterateOnce() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.iterations++
}

func (e *Engine) Interval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.IntervalValue
}

func (e *Engine) PlaceCall(peer, audioBitRate, videoBitRate uint32) engine.CallErr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.placeCalls = append(e.placeCalls, CallArgs{peer, audioBitRate, videoBitRate})
	return e.CallResult
}

func (e *Engine) AnswerCall(peer, audioBitRate, videoBitRate uint32) engine.AnswerErr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.answers = append(e.answers, CallArgs{peer, audioBitRate, videoBitRate})
	return e.AnswerResult
}

func (e *Engine) SendControl(peer uint32, control engine.CallControl) engine.ControlErr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.controls = append(e.controls, ControlArgs{peer, control})
	return e.ControlResult
}

func (e *Engine) SetAudioBitRate(peer, bitRate uint32, force bool) engine.BitrateErr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audioRates = append(e.audioRates, BitrateArgs{peer, bitRate, force})
	return e.BitrateResult
}

func (e *Engine) SetVideoBitRate(peer, bitRate uint32, force bool) engine.BitrateErr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.videoRates = append(e.videoRates, BitrateArgs{peer, bitRate, force})
	return e.BitrateResult
}

func (e *Engine) SendAudioFrame(peer uint32, pcm []int16, sampleCount int, channels uint8, samplingRate uint32) engine.SendErr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audioFrames = append(e.audioFrames, AudioFrameArgs{peer, pcm, sampleCount, channels, samplingRate})
	return e.SendResult
}

func (e *Engine) SendVideoFrame(peer uint32, width, height uint16, y, u, v []byte) engine.SendErr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.videoFrames = append(e.videoFrames, VideoFrameArgs{peer, width, height, y, u, v})
	return e.SendResult
}

func (e *Engine) HookCallRequest(hook engine.CallRequestHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callRequestHook = hook
	e.hookLog = append(e.hookLog, HookChange{"call-request", hook != nil})
}

func (e *Engine) HookCallState(hook engine.CallStateHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callStateHook = hook
	e.hookLog = append(e.hookLog, HookChange{"call-state", hook != nil})
}

func (e *Engine) HookAudioBitrate(hook engine.BitrateHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audioRateHook = hook
	e.hookLog = append(e.hookLog, HookChange{"audio-bitrate", hook != nil})
}

func (e *Engine) HookVideoBitrate(hook engine.BitrateHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.videoRateHook = hook
	e.hookLog = append(e.hookLog, HookChange{"video-bitrate", hook != nil})
}

func (e *Engine) HookAudioFrame(hook engine.AudioFrameHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audioFrameHook = hook
	e.hookLog = append(e.hookLog, HookChange{"audio-frame", hook != nil})
}

func (e *Engine) HookVideoFrame(hook engine.VideoFrameHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.videoFrameHook = hook
	e.hookLog = append(e.hookLog, HookChange{"video-frame", hook != nil})
}

func (e *Engine) CreateGroupChannel(callback engine.GroupAudioHook) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.CreateResult != -1 && callback != nil {
		e.groupCallbacks = append(e.groupCallbacks, callback)
	}
	return e.CreateResult
}

func (e *Engine) JoinGroupChannel(peer uint32, joinData []byte, callback engine.GroupAudioHook) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.joins = append(e.joins, JoinArgs{peer, joinData})
	if e.JoinResult != -1 && callback != nil {
		e.groupCallbacks = append(e.groupCallbacks, callback)
	}
	return e.JoinResult
}

func (e *Engine) SendGroupAudio(channel int, pcm []int16, samplesPerFrame int, channels uint8, samplingRate uint32) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.groupSends = append(e.groupSends, GroupSendArgs{channel, pcm, samplesPerFrame, channels, samplingRate})
	return e.GroupSendResult
}

func (e *Engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releases++
}

// FireCallRequest invokes the registered call-request hook, if any.
func (e *Engine) FireCallRequest(peer uint32, audioEnabled, videoEnabled bool) {
	e.mu.Lock()
	hook := e.callRequestHook
	e.mu.Unlock()
	if hook != nil {
		hook(peer, audioEnabled, videoEnabled)
	}
}

// FireCallState invokes the registered call-state hook, if any.
func (e *Engine) FireCallState(peer uint32, state engine.CallState) {
	e.mu.Lock()
	hook := e.callStateHook
	e.mu.Unlock()
	if hook != nil {
		hook(peer, state)
	}
}

// FireAudioBitrate invokes the registered audio-bitrate hook, if any.
func (e *Engine) FireAudioBitrate(peer, bitRate uint32) {
	e.mu.Lock()
	hook := e.audioRateHook
	e.mu.Unlock()
	if hook != nil {
		hook(peer, bitRate)
	}
}

// FireVideoBitrate invokes the registered video-bitrate hook, if any.
func (e *Engine) FireVideoBitrate(peer, bitRate uint32) {
	e.mu.Lock()
	hook := e.videoRateHook
	e.mu.Unlock()
	if hook != nil {
		hook(peer, bitRate)
	}
}

// FireAudioFrame invokes the registered audio-frame hook, if any.
func (e *Engine) FireAudioFrame(peer uint32, pcm []int16, sampleCount int, channels uint8, samplingRate uint32) {
	e.mu.Lock()
	hook := e.audioFrameHook
	e.mu.Unlock()
	if hook != nil {
		hook(peer, pcm, sampleCount, channels, samplingRate)
	}
}

// FireVideoFrame invokes the registered video-frame hook, if any.
func (e *Engine) FireVideoFrame(peer uint32, width, height uint16, y, u, v []byte, yStride, uStride, vStride int) {
	e.mu.Lock()
	hook := e.videoFrameHook
	e.mu.Unlock()
	if hook != nil {
		hook(peer, width, height, y, u, v, yStride, uStride, vStride)
	}
}

// FireGroupAudio invokes the group callback at the given registry index.
// Callbacks are indexed in the order the stub accepted them.
func (e *Engine) FireGroupAudio(index, channel int, peer uint32, pcm []int16, channels uint8, samplingRate uint32) {
	e.mu.Lock()
	var hook engine.GroupAudioHook
	if index >= 0 && index < len(e.groupCallbacks) {
		hook = e.groupCallbacks[index]
	}
	e.mu.Unlock()
	if hook != nil {
		hook(channel, peer, pcm, channels, samplingRate)
	}
}

// Iterations reports how many IterateOnce calls were made.
func (e *Engine) Iterations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.iterations
}

// Releases reports how many Release calls were made.
func (e *Engine) Releases() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.releases
}

// HookLog returns a copy of every hook registration change, in order.
func (e *Engine) HookLog() []HookChange {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]HookChange, len(e.hookLog))
	copy(out, e.hookLog)
	return out
}

// HookLogFor returns the hook changes recorded for one capability name.
func (e *Engine) HookLogFor(capability string) []HookChange {
	var out []HookChange
	for _, ch := range e.HookLog() {
		if ch.Capability == capability {
			out = append(out, ch)
		}
	}
	return out
}

// PlaceCalls returns a copy of recorded PlaceCall invocations.
func (e *Engine) PlaceCalls() []CallArgs {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]CallArgs(nil), e.placeCalls...)
}

// Answers returns a copy of recorded AnswerCall invocations.
func (e *Engine) Answers() []CallArgs {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]CallArgs(nil), e.answers...)
}

// Controls returns a copy of recorded SendControl invocations.
func (e *Engine) Controls() []ControlArgs {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ControlArgs(nil), e.controls...)
}

// AudioRates returns a copy of recorded SetAudioBitRate invocations.
func (e *Engine) AudioRates() []BitrateArgs {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]BitrateArgs(nil), e.audioRates...)
}

// VideoRates returns a copy of recorded SetVideoBitRate invocations.
func (e *Engine) VideoRates() []BitrateArgs {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]BitrateArgs(nil), e.videoRates...)
}

// AudioFrames returns a copy of recorded SendAudioFrame invocations.
func (e *Engine) AudioFrames() []AudioFrameArgs {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]AudioFrameArgs(nil), e.audioFrames...)
}

// VideoFrames returns a copy of recorded SendVideoFrame invocations.
func (e *Engine) VideoFrames() []VideoFrameArgs {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]VideoFrameArgs(nil), e.videoFrames...)
}

// Joins returns a copy of recorded JoinGroupChannel invocations.
func (e *Engine) Joins() []JoinArgs {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]JoinArgs(nil), e.joins...)
}

// GroupSends returns a copy of recorded SendGroupAudio invocations.
func (e *Engine) GroupSends() []GroupSendArgs {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]GroupSendArgs(nil), e.groupSends...)
}

// GroupCallbackCount reports how many group callbacks the stub retained.
func (e *Engine) GroupCallbackCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.groupCallbacks)
}
