package importer

import (
	"fmt"

	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
)

// StageError records the pipeline stage an item failed in.
type StageError struct {
	Stage domain.Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// PersistError is returned when the content store rejects a finished draft.
type PersistError struct {
	Slug string
	Err  error
}

func (e *PersistError) Error() string { return fmt.Sprintf("persist %q: %v", e.Slug, e.Err) }
func (e *PersistError) Unwrap() error { return e.Err }
