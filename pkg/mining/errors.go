package mining

import "errors"

var (
	// ErrNoClassifier is returned when selection runs without a classifier.
	ErrNoClassifier = errors.New("mining: no classifier configured")
	// ErrNoBlame is returned when resolution runs without a blame oracle.
	ErrNoBlame = errors.New("mining: no blame oracle configured")
)
