package flight

import "errors"

// Data source failure classes. Sources wrap these so callers can use errors.Is.
var (
	// ErrNoData means the source has nothing for the requested flight
	ErrNoData = errors.New("no flight data")

	// ErrMisconfigured means the source cannot be queried, e.g. missing API key
	ErrMisconfigured = errors.New("flight data source misconfigured")

	// ErrUnreachable means the request failed in transit or upstream
	ErrUnreachable = errors.New("flight data source unreachable")
)
