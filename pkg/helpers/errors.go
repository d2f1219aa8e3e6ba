package helpers

import (
	"fmt"
)

// WrapError prefixes err with message. A nil err stays nil.
//
// Example:
//
//	return helpers.WrapError(err, "qdrant upsert")
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf is WrapError with a formatted message.
//
// Example:
//
//	return helpers.WrapErrorf(err, "create collection %s", name)
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
