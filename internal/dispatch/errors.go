package dispatch

import "errors"

var (
	// ErrUnrecognizedBroadcast marks a broadcast whose kind is empty or not
	// one the Dispatcher accepts. It is logged, never returned to callers.
	ErrUnrecognizedBroadcast = errors.New("dispatch: unrecognized broadcast")
	ErrRegistrationFailure   = errors.New("dispatch: registration failed")
	ErrStoreWriteFailure     = errors.New("dispatch: store write failed")
	// ErrMalformedFailureState marks an error reply for a send with no
	// usable recipient to address an alert to.
	ErrMalformedFailureState = errors.New("dispatch: error status with no recipients")
	ErrAlertFailure          = errors.New("dispatch: alert post failed")
	ErrLaunchFailure         = errors.New("dispatch: launch failed")
)
