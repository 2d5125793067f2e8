// Package event converts low-level native notifications into structured
// event payloads and fans them out to registered observers.
//
// Hook registration with the engine is lazy: a capability's native hook is
// registered when its first observer subscribes and unregistered when its
// last observer leaves. Dispatch preserves the order the engine raises
// notifications and the order observers registered in, and a panic in one
// observer never prevents the remaining observers from running.
package event

import "github.com/opd-ai/avsession/engine"

// Capability identifies one category of native notification that can have
// independent observer subscriptions.
type Capability uint8

const (
	// CapCallRequest is raised when a peer requests a call.
	CapCallRequest Capability = iota
	// CapCallState is raised when a call's state changes.
	CapCallState
	// CapAudioBitrate is raised when the engine adjusts the audio bit rate.
	CapAudioBitrate
	// CapVideoBitrate is raised when the engine adjusts the video bit rate.
	CapVideoBitrate
	// CapAudioFrame is raised when a decoded audio frame arrives.
	CapAudioFrame
	// CapVideoFrame is raised when a decoded video frame arrives.
	CapVideoFrame
	// CapGroupAudio is raised when audio arrives on a group channel.
	CapGroupAudio

	capCount
)

// String returns the capability name used in logs and metric labels.
func (c Capability) String() string {
	switch c {
	case CapCallRequest:
		return "call-request"
	case CapCallState:
		return "call-state"
	case CapAudioBitrate:
		return "audio-bitrate"
	case CapVideoBitrate:
		return "video-bitrate"
	case CapAudioFrame:
		return "audio-frame"
	case CapVideoFrame:
		return "video-frame"
	case CapGroupAudio:
		return "group-audio"
	default:
		return "unknown"
	}
}

// CallRequest describes an incoming call request from a peer.
type CallRequest struct {
	Peer         uint32
	AudioEnabled bool
	VideoEnabled bool
}

// StateChange describes a call state transition reported by the engine.
type StateChange struct {
	Peer  uint32
	State engine.CallState
}

// AudioBitrate describes an engine-driven audio bit rate adjustment.
type AudioBitrate struct {
	Peer    uint32
	BitRate uint32
}

// VideoBitrate describes an engine-driven video bit rate adjustment.
type VideoBitrate struct {
	Peer    uint32
	BitRate uint32
}

// AudioFrame is one decoded audio frame. PCM holds signed 16-bit samples
// interleaved by channel; len(PCM) is always SampleCount*Channels.
//
// The PCM buffer is only valid for the duration of the dispatch call that
// delivers it; observers must copy it before returning if they retain it.
type AudioFrame struct {
	Peer         uint32
	PCM          []int16
	SampleCount  int
	Channels     uint8
	SamplingRate uint32
}

// VideoFrame is one decoded YUV420 video frame. The plane buffers are
// read-only views owned by the engine and are only valid for the duration
// of the dispatch call that delivers them.
type VideoFrame struct {
	Peer          uint32
	Width, Height uint16
	Y, U, V       []byte
	YStride       int
	UStride       int
	VStride       int
}

// GroupAudioFrame is one audio frame received on a group channel. Unlike
// AudioFrame, the PCM buffer is a copy owned by the receiver and may be
// retained freely.
type GroupAudioFrame struct {
	Channel      int
	Peer         uint32
	PCM          []int16
	Channels     uint8
	SamplingRate uint32
}
