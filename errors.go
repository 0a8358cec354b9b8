package nghs

import "go.uber.org/zap"

// fatalf logs msg at Fatal level on the table's logger and terminates the
// process. zap's Fatal level calls os.Exit(1) after flushing, which is the
// Go-idiomatic equivalent of an abort() after printing a diagnostic line.
// Contract violations (duplicate level-1 insert, update/remove of a missing
// key) and capacity exhaustion are not recoverable: they indicate a caller
// bug, not a transient fault, so this is deliberately not an error return.
func fatalf(logger *zap.Logger, msg string, fields ...zap.Field) {
	logger.Fatal(msg, fields...)
}
