package sync

import (
	"errors"
	"fmt"

	"github.com/sandeepkandula/archivesync/auth"
)

var (
	// ErrCycleDetected is recorded for a folder whose normalized path was
	// already visited or that lies deeper than the request's MaxDepth.
	ErrCycleDetected = errors.New("cycle detected")
	// ErrNameCollision is recorded when CollisionReject refuses a second file
	// with an already fetched name.
	ErrNameCollision = errors.New("name collision in destination")

	errMissingLocator = errors.New("entry has no fetch locator")
)

// ListingError reports a folder whose children could not be enumerated.
type ListingError struct {
	Path       string
	StatusCode int // upstream status, 0 if none
	Err        error
}

func (e *ListingError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("list %q: status %d: %v", e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("list %q: %v", e.Path, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}

// FetchError reports a selected file that could not be materialized.
type FetchError struct {
	Name string
	Path string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q: %v", e.Path, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Failure is one entry the walk could not process.
type Failure struct {
	Name string
	Path string
	Err  error
}

// Kind classifies the failure for logs and metrics.
func (f Failure) Kind() string {
	var (
		authErr    *auth.Error
		listingErr *ListingError
		fetchErr   *FetchError
	)
	switch {
	case errors.As(f.Err, &authErr):
		return "auth"
	case errors.Is(f.Err, ErrCycleDetected):
		return "cycle"
	case errors.Is(f.Err, ErrNameCollision):
		return "collision"
	case errors.As(f.Err, &listingErr):
		return "listing"
	case errors.As(f.Err, &fetchErr):
		return "fetch"
	default:
		return "other"
	}
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}
