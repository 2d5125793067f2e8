// Package avsession is a session controller for real-time audio/video
// calls carried over a peer-to-peer messaging network.
//
// For each remote peer the controller negotiates call setup, tracks call
// state, adapts media bit rates, and exchanges encoded audio/video frames.
// A simplified group audio broadcast mode lets many peers share one audio
// channel.
//
// The controller is layered on a native media engine accessed only through
// the contract in the engine package: the engine performs codec, transport,
// and call-signaling work; avsession owns the session lifecycle, the
// iteration scheduler, event dispatch, and group-callback lifetime
// management.
//
// Basic usage:
//
//	ctrl, err := avsession.New(identity, createEngine, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctrl.Kill()
//
//	requests := make(chan event.CallRequest, 1)
//	ctrl.OnCallRequest(func(ev event.CallRequest) {
//	    requests <- ev
//	})
//	ctrl.Start()
//
//	ev := <-requests
//	ctrl.Answer(ev.Peer, 48000, 0)
package avsession
