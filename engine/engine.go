package engine

import "time"

// Identity is an opaque reference to the caller's identity on the
// underlying peer-to-peer messaging network. It is supplied at controller
// construction and handed to the engine unchanged.
type Identity interface{}

// CreateFunc constructs a native engine instance bound to the given
// peer identity. A nil engine or a non-nil error is fatal to controller
// construction: no partially-usable instance is ever produced.
type CreateFunc func(identity Identity) (Engine, error)

// CallState represents the current state of an audio/video call as a
// bit field. These values match the libtoxcore ToxAV API for compatibility.
type CallState uint32

const (
	// CallStateNone indicates no call is active.
	CallStateNone CallState = 0
	// CallStateError indicates an unrecoverable call error occurred.
	CallStateError CallState = 1
	// CallStateFinished indicates the call has ended normally.
	CallStateFinished CallState = 2
	// CallStateSendingAudio indicates the peer is sending audio.
	CallStateSendingAudio CallState = 4
	// CallStateSendingVideo indicates the peer is sending video.
	CallStateSendingVideo CallState = 8
	// CallStateAcceptingAudio indicates the peer is accepting audio.
	CallStateAcceptingAudio CallState = 16
	// CallStateAcceptingVideo indicates the peer is accepting video.
	CallStateAcceptingVideo CallState = 32
)

// CallControl represents call control actions sent to an existing session.
// These values match the libtoxcore ToxAV API for compatibility.
type CallControl uint32

const (
	// CallControlResume resumes a paused call.
	CallControlResume CallControl = iota
	// CallControlPause pauses an active call.
	CallControlPause
	// CallControlCancel cancels/ends the call.
	CallControlCancel
	// CallControlMuteAudio mutes outgoing audio.
	CallControlMuteAudio
	// CallControlUnmuteAudio unmutes outgoing audio.
	CallControlUnmuteAudio
	// CallControlHideVideo hides outgoing video.
	CallControlHideVideo
	// CallControlShowVideo shows outgoing video.
	CallControlShowVideo
)

// Notification hook signatures. The engine invokes hooks on its internal
// thread of execution, which may be the thread currently inside
// IterateOnce. Passing a nil hook unregisters the previous one.
//
// Buffer arguments (PCM samples, video planes) are owned by the engine and
// are only valid for the duration of the hook invocation; they must be
// copied before the hook returns if retention is needed.
type (
	// CallRequestHook is invoked when a peer requests a call.
	CallRequestHook func(peer uint32, audioEnabled, videoEnabled bool)

	// CallStateHook is invoked when a call's state changes.
	CallStateHook func(peer uint32, state CallState)

	// BitrateHook is invoked when the engine adjusts a media bit rate.
	BitrateHook func(peer uint32, bitRate uint32)

	// AudioFrameHook is invoked when a decoded audio frame arrives.
	AudioFrameHook func(peer uint32, pcm []int16, sampleCount int, channels uint8, samplingRate uint32)

	// VideoFrameHook is invoked when a decoded video frame arrives.
	VideoFrameHook func(peer uint32, width, height uint16, y, u, v []byte, yStride, uStride, vStride int)

	// GroupAudioHook is invoked when audio arrives on a group channel the
	// engine was given this callback for at channel create/join time.
	GroupAudioHook func(channel int, peer uint32, pcm []int16, channels uint8, samplingRate uint32)
)

// Engine is the boundary contract around one live instance of the native
// media/call engine, bound 1:1 to a peer identity.
//
// Thread-safety contract: implementations must tolerate hook registration
// methods being called concurrently with IterateOnce. IterateOnce itself and
// the session operations (PlaceCall through SendGroupAudio) are NOT required
// to be mutually safe; the controller serializes them externally.
//
// Release must be called exactly once, never while an IterateOnce call is in
// flight; after Release every other method is undefined behavior.
type Engine interface {
	// IterateOnce performs one step of the engine's periodic work.
	// It is not reentrant.
	IterateOnce()

	// Interval reports how long the caller should wait before the next
	// IterateOnce. A zero interval means the engine has no preference.
	Interval() time.Duration

	// PlaceCall requests an audio/video call with a peer. A bit rate of 0
	// disables that medium.
	PlaceCall(peer, audioBitRate, videoBitRate uint32) CallErr

	// AnswerCall accepts a pending incoming call request.
	AnswerCall(peer, audioBitRate, videoBitRate uint32) AnswerErr

	// SendControl sends a call control signal to an existing session.
	SendControl(peer uint32, control CallControl) ControlErr

	// SetAudioBitRate requests an audio bit rate change. With force set the
	// engine applies it even if its own congestion estimate disagrees.
	SetAudioBitRate(peer, bitRate uint32, force bool) BitrateErr

	// SetVideoBitRate requests a video bit rate change.
	SetVideoBitRate(peer, bitRate uint32, force bool) BitrateErr

	// SendAudioFrame transmits one audio frame. sampleCount is the number
	// of samples per channel; len(pcm) must equal sampleCount*channels.
	SendAudioFrame(peer uint32, pcm []int16, sampleCount int, channels uint8, samplingRate uint32) SendErr

	// SendVideoFrame transmits one YUV420 video frame.
	SendVideoFrame(peer uint32, width, height uint16, y, u, v []byte) SendErr

	// Per-capability notification hook registration. Nil unregisters.
	HookCallRequest(hook CallRequestHook)
	HookCallState(hook CallStateHook)
	HookAudioBitrate(hook BitrateHook)
	HookVideoBitrate(hook BitrateHook)
	HookAudioFrame(hook AudioFrameHook)
	HookVideoFrame(hook VideoFrameHook)

	// CreateGroupChannel creates a new group audio channel and binds the
	// receive callback to it. Returns the channel id, or -1 on failure.
	// The engine may invoke the callback for its whole remaining lifetime.
	CreateGroupChannel(callback GroupAudioHook) int

	// JoinGroupChannel joins an existing group audio channel using opaque
	// join data from the inviting peer. Returns the channel id, or -1.
	JoinGroupChannel(peer uint32, joinData []byte, callback GroupAudioHook) int

	// SendGroupAudio broadcasts one audio frame to all channel members.
	// Returns 0 on success, following the native convention.
	SendGroupAudio(channel int, pcm []int16, samplesPerFrame int, channels uint8, samplingRate uint32) int

	// Release destroys the engine instance and frees its resources.
	Release()
}
