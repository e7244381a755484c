package simidx

import (
	"errors"
	"fmt"

	"github.com/grckit/simidx/corpus"
	"github.com/grckit/simidx/engine"
)

var (
	// ErrNoEmbeddings is returned when the corpus has no usable embedding
	// data. The run aborts before any write.
	ErrNoEmbeddings = errors.New("no usable embedding data")

	// ErrClosed is returned when the engine is used after Close.
	ErrClosed = errors.New("engine is closed")
)

// ErrWriteFailed indicates the final store transaction of a run failed.
// The compute phases completed; the previous index version is still intact
// and current, so the run can be retried as a whole.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrWriteFailed struct {
	Mode  string
	cause error
}

func (e *ErrWriteFailed) Error() string {
	return fmt.Sprintf("%s write failed: %v", e.Mode, e.cause)
}

func (e *ErrWriteFailed) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, corpus.ErrNoEmbeddings) {
		return fmt.Errorf("%w: %w", ErrNoEmbeddings, err)
	}

	var we *engine.WriteError
	if errors.As(err, &we) {
		return &ErrWriteFailed{Mode: we.Mode.String(), cause: err}
	}

	return err
}
