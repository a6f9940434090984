package flatlayers

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrAllocation is returned by SmoothMask when its scratch buffer cannot be
// allocated. The mask is left as it was.
var ErrAllocation = errors.New("failed to allocate smoothing buffer")

// ConfigError reports an invalid option. It is fatal before any work starts.
type ConfigError struct {
	Field string
	Value int
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %d", e.Field, e.Value)
}

// LoadError reports an input raster that could not be read or has the wrong
// dimensions.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// OutputError reports a failure to deliver an artifact. Artifacts written
// before the failure are kept.
type OutputError struct {
	Artifact string
	Err      error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Artifact, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }
