// Package state stores per-conversation records for multi-step bot flows.
// Callers choose the record type and own the lifecycle of each entry.
package state
