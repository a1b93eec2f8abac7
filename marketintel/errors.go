// CLAUDE:SUMMARY Re-exported error taxonomy: not found, missing configuration, unsupported source, fetch failure, no data, validation.
package marketintel

import "github.com/hazyhaar/marketintel/marketintel/internal/errs"

// Sentinel errors returned by the service. Test with errors.Is.
var (
	ErrNotFound             = errs.ErrNotFound
	ErrMissingConfiguration = errs.ErrMissingConfiguration
	ErrUnsupportedSource    = errs.ErrUnsupportedSource
	ErrFetchFailure         = errs.ErrFetchFailure
	ErrNoData               = errs.ErrNoData
	ErrValidation           = errs.ErrValidation
)
