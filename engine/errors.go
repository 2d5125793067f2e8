package engine

import "errors"

// Sentinel errors shared across the controller surface.
// These enable reliable error classification using errors.Is().
var (
	// ErrDisposed indicates an operation was invoked after the controller
	// released its engine handle.
	ErrDisposed = errors.New("instance has been destroyed")

	// ErrInvalidArgument indicates a required buffer was absent or a
	// buffer-length/channel-count mismatch was detected. It is always
	// raised before any native call is made.
	ErrInvalidArgument = errors.New("invalid argument")
)

// CallErr is the engine's result code for call initiation.
type CallErr uint8

const (
	CallErrOk CallErr = iota
	CallErrMalloc
	CallErrSync
	CallErrFriendNotFound
	CallErrFriendNotConnected
	CallErrFriendAlreadyInCall
	CallErrInvalidBitRate
)

func (e CallErr) Error() string {
	switch e {
	case CallErrOk:
		return "call: ok"
	case CallErrMalloc:
		return "call: allocation failed"
	case CallErrSync:
		return "call: synchronization error"
	case CallErrFriendNotFound:
		return "call: friend not found"
	case CallErrFriendNotConnected:
		return "call: friend not connected"
	case CallErrFriendAlreadyInCall:
		return "call: friend already in call"
	case CallErrInvalidBitRate:
		return "call: invalid bit rate"
	default:
		return "call: unknown error"
	}
}

// AnswerErr is the engine's result code for answering a call.
type AnswerErr uint8

const (
	AnswerErrOk AnswerErr = iota
	AnswerErrSync
	AnswerErrCodecInitialization
	AnswerErrFriendNotFound
	AnswerErrFriendNotCalling
	AnswerErrInvalidBitRate
)

func (e AnswerErr) Error() string {
	switch e {
	case AnswerErrOk:
		return "answer: ok"
	case AnswerErrSync:
		return "answer: synchronization error"
	case AnswerErrCodecInitialization:
		return "answer: codec initialization failed"
	case AnswerErrFriendNotFound:
		return "answer: friend not found"
	case AnswerErrFriendNotCalling:
		return "answer: friend not calling"
	case AnswerErrInvalidBitRate:
		return "answer: invalid bit rate"
	default:
		return "answer: unknown error"
	}
}

// ControlErr is the engine's result code for call control signals.
type ControlErr uint8

const (
	ControlErrOk ControlErr = iota
	ControlErrSync
	ControlErrFriendNotFound
	ControlErrFriendNotInCall
	ControlErrInvalidTransition
)

func (e ControlErr) Error() string {
	switch e {
	case ControlErrOk:
		return "call control: ok"
	case ControlErrSync:
		return "call control: synchronization error"
	case ControlErrFriendNotFound:
		return "call control: friend not found"
	case ControlErrFriendNotInCall:
		return "call control: friend not in call"
	case ControlErrInvalidTransition:
		return "call control: invalid transition"
	default:
		return "call control: unknown error"
	}
}

// BitrateErr is the engine's result code for bit rate changes.
type BitrateErr uint8

const (
	BitrateErrOk BitrateErr = iota
	BitrateErrSync
	BitrateErrInvalidBitRate
	BitrateErrFriendNotFound
	BitrateErrFriendNotInCall
)

func (e BitrateErr) Error() string {
	switch e {
	case BitrateErrOk:
		return "bit rate set: ok"
	case BitrateErrSync:
		return "bit rate set: synchronization error"
	case BitrateErrInvalidBitRate:
		return "bit rate set: invalid bit rate"
	case BitrateErrFriendNotFound:
		return "bit rate set: friend not found"
	case BitrateErrFriendNotInCall:
		return "bit rate set: friend not in call"
	default:
		return "bit rate set: unknown error"
	}
}

// SendErr is the engine's result code for frame transmission.
type SendErr uint8

const (
	SendErrOk SendErr = iota
	SendErrNull
	SendErrFriendNotFound
	SendErrFriendNotInCall
	SendErrSync
	SendErrInvalid
	SendErrPayloadTypeDisabled
	SendErrRTPFailed
)

func (e SendErr) Error() string {
	switch e {
	case SendErrOk:
		return "send frame: ok"
	case SendErrNull:
		return "send frame: required buffer was null"
	case SendErrFriendNotFound:
		return "send frame: friend not found"
	case SendErrFriendNotInCall:
		return "send frame: friend not in call"
	case SendErrSync:
		return "send frame: synchronization error"
	case SendErrInvalid:
		return "send frame: invalid frame"
	case SendErrPayloadTypeDisabled:
		return "send frame: payload type disabled"
	case SendErrRTPFailed:
		return "send frame: RTP transmission failed"
	default:
		return "send frame: unknown error"
	}
}
