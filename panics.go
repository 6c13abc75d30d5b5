package cmmn

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/goliatone/go-cmmn/execution"
)

// PanicLogger receives a recovered panic with its cleaned stack.
type PanicLogger func(funcName string, err any, stack []byte, fields ...map[string]any)

// MakePanicHandler returns a deferrable function that recovers a panic,
// reports it and stores it in *errp as an ErrPanic clone.
func MakePanicHandler(logger PanicLogger) func(funcName string, errp *error, fields ...map[string]any) {
	return func(funcName string, errp *error, fields ...map[string]any) {
		r := recover()
		if r == nil {
			return
		}
		fullStack := make([]byte, 8096)
		n := runtime.Stack(fullStack, false)
		stack := cleanStackTrace(fullStack[:n])
		if logger != nil {
			logger(funcName, r, stack, fields...)
		}
		if errp != nil {
			meta := map[string]any{"func": funcName}
			if len(fields) > 0 {
				for k, v := range fields[0] {
					meta[k] = v
				}
			}
			perr := engineError(ErrPanic, "recovered from panic in %s: %v", funcName, r).WithMetadata(meta)
			if cause, ok := r.(error); ok {
				perr.Source = cause
			}
			*errp = perr
		}
	}
}

// LoggerPanicLogger reports panics at Error level on logger.
func LoggerPanicLogger(logger execution.Logger) PanicLogger {
	return func(funcName string, err any, stack []byte, fields ...map[string]any) {
		if logger == nil {
			return
		}
		out := logger
		if len(fields) > 0 && fields[0] != nil {
			out = execution.WithLoggerFields(logger, fields[0])
		}
		out.Error("%s", formatPanic(funcName, err, stack, fields...))
	}
}

func formatPanic(funcName string, err any, stack []byte, fields ...map[string]any) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("recovered from panic in %s\n", funcName))
	sb.WriteString(fmt.Sprintf("Error: %v\n", err))
	sb.WriteString(fmt.Sprintf("Error Type: %T\n", err))

	if len(fields) > 0 && fields[0] != nil {
		sb.WriteString("Context:\n")

		// sort keys for consistent output
		keys := make([]string, 0, len(fields[0]))
		for k := range fields[0] {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, fields[0][k]))
		}
	}

	sb.WriteString("Stack Trace:\n")
	sb.Write(stack)
	return sb.String()
}

func cleanStackTrace(stack []byte) []byte {
	lines := strings.Split(string(stack), "\n")

	panicLineIndex := -1
	for i, line := range lines {
		if strings.Contains(line, "panic(") {
			panicLineIndex = i
			break
		}
	}

	// drop the panic() call line and its file reference
	if panicLineIndex >= 0 && panicLineIndex+2 < len(lines) {
		lines = lines[panicLineIndex+2:]
	}

	return []byte(strings.Join(lines, "\n"))
}
