package synchronizer

import "errors"

var (
	// ErrNilParticipant is returned when Add or Remove receives a nil participant.
	ErrNilParticipant = errors.New("participant is nil")

	// ErrParticipantNotComparable is returned for participants whose dynamic type
	// cannot be used as a set key. Use pointer receivers.
	ErrParticipantNotComparable = errors.New("participant type is not comparable")

	// ErrReentrantTick is returned when Tick is called from inside a participant.
	ErrReentrantTick = errors.New("tick called reentrantly")

	// ErrAlreadyStarted is returned by Start while a tick loop is running.
	ErrAlreadyStarted = errors.New("synchronizer already started")

	// ErrNotStarted is returned by Stop when no tick loop is running.
	ErrNotStarted = errors.New("synchronizer not started")

	// ErrShutdownTimeout is returned by Stop when the running tick does not finish in time.
	ErrShutdownTimeout = errors.New("synchronizer shutdown timeout exceeded")

	// Health check errors
	ErrHealthcheckFailed = errors.New("healthcheck failed")
	ErrNotRunning        = errors.New("tick loop is not running")
	ErrStalled           = errors.New("tick loop is stalled")
)
