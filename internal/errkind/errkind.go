// Package errkind defines the error taxonomy shared by the decode and
// recovery packages. Low-level decode and repair functions return these
// sentinels (usually wrapped) instead of aborting; callers recover by
// advancing to the next sync candidate, revolution, or repair method.
package errkind

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrSyncNotFound        = errors.New("sync not found")
	ErrHeaderChecksum      = errors.New("header checksum error")
	ErrDataChecksum        = errors.New("data checksum error")
	ErrUnrecoverableSector = errors.New("unrecoverable sector")
	ErrHardwareRead        = errors.New("hardware read error")
	ErrFormatMismatch      = errors.New("format mismatch")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrHardwareRead
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether err indicates a programmer error that should stop the
// run instead of being absorbed into recovery statistics.
func Fatal(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "decode failure"
	}
	return strings.Join(parts, ": ")
}
