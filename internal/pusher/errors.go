package pusher

import "errors"

var (
	// ErrConfiguration indicates invalid field, constant or worker settings.
	ErrConfiguration = errors.New("pusher: invalid configuration")

	// ErrInvalidTimeStep indicates a dt that is not finite and positive.
	ErrInvalidTimeStep = errors.New("pusher: time step must be finite and positive")
)
