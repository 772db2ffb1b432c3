// Package logging assembles structured slog loggers shared by the glosser
// engine, backend clients, and CLI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attr helpers so engine code tags log lines with job
// IDs, backend IDs, and batch units in a uniform shape. A no-op logger is
// provided for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape and routing.
package logging
