package cycle

import (
	"git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
)

// IsLoadError reports whether err means the state file could not be opened.
func IsLoadError(err error) bool {
	return errors.HasCategory(err, errors.CategoryLoad)
}

// IsInvalidArgument reports whether err was caused by an empty or unknown argument.
func IsInvalidArgument(err error) bool {
	return errors.HasCategory(err, errors.CategoryValidation)
}

// IsPersistError reports whether err is a failed save. The in-memory state is
// intact. I/O failures are retryable (errors.IsRetryable); failures caused by
// the document itself, such as encoding or read-back validation, are not.
func IsPersistError(err error) bool {
	return errors.HasCategory(err, errors.CategoryPersist)
}

// IsIntegrityError reports whether the state file decoded but holds inconsistent records.
func IsIntegrityError(err error) bool {
	return errors.HasCategory(err, errors.CategoryIntegrity)
}

func invalidArgument(message string) *errors.ErrorBuilder {
	return errors.ValidationError(message)
}

// withPath attaches the state file path to classified errors.
func withPath(err error, path string) error {
	if ce, ok := errors.AsClassified(err); ok {
		return ce.WithContext("path", path)
	}
	return err
}
