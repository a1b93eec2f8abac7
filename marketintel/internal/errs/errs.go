// Package errs holds the error taxonomy shared by every marketintel layer.
// Callers wrap with fmt.Errorf("%w: ...", errs.ErrX) and test with errors.Is.
package errs

import "errors"

var (
	// ErrNotFound: a referenced company, product or report does not exist (or is inactive where that matters).
	ErrNotFound = errors.New("not found")
	// ErrMissingConfiguration: a product lacks a URL or required tracking configuration.
	ErrMissingConfiguration = errors.New("missing configuration")
	// ErrUnsupportedSource: no extractor family claims the URL.
	ErrUnsupportedSource = errors.New("unsupported source")
	// ErrFetchFailure: network, timeout or rendering error. Always retryable.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrNoData: an analytics query found no qualifying observations.
	ErrNoData = errors.New("no data")
	// ErrValidation: malformed or missing fields in input or extracted data.
	ErrValidation = errors.New("validation failure")
)

// Retryable reports whether a job failing with err is worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrFetchFailure)
}
