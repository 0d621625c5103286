// Package errors provides the classified error type used across texbuilder.
//
// A ClassifiedError carries a category (config, toolchain, filesystem, ...),
// a severity and free-form context. The CLI and HTTP adapters turn categories
// into exit codes and status codes.
//
// Example usage:
//
//	err := errors.ToolchainError("engine not found").
//		WithCause(execErr).
//		WithContext("tool", "pdflatex").
//		Build()
package errors
