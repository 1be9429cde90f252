// Package store defines the persistence contracts of the bookkeeping layer
// and the sentinel errors shared by every implementation. Each conceptual
// table has one interface; implementations live under platform packages.
// Absence of an entity is reported through the ErrNotFound family, never by
// a nil-and-no-error result.
package store
