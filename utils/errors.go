package utils

import (
	"github.com/pkg/errors"
)

// Failure kinds shared by every codec. Callers match them with errors.Is
// after any amount of errors.Wrapf layering.
var (
	ErrFormatViolation    = errors.New("format violation")
	ErrUnsupportedVariant = errors.New("unsupported variant")
	ErrDataInconsistency  = errors.New("data inconsistency")
	ErrTransientAnomaly   = errors.New("transient decode anomaly")
)

func FormatViolationf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrFormatViolation, format, args...)
}

func UnsupportedVariantf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnsupportedVariant, format, args...)
}

func DataInconsistencyf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrDataInconsistency, format, args...)
}

func TransientAnomalyf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrTransientAnomaly, format, args...)
}

// ErrorKind returns the taxonomy sentinel carried by err, or nil.
func ErrorKind(err error) error {
	for _, kind := range []error{ErrFormatViolation, ErrUnsupportedVariant, ErrDataInconsistency, ErrTransientAnomaly} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
