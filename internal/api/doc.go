// Package api exposes the collaborator HTTP surface: task submission,
// lookup, active-task listing, kill, purge and record progress reporting.
// Handlers translate store and domain sentinel errors into HTTP status
// codes and never leak raw internal errors to clients.
package api
