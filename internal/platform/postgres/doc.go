// Package postgres implements the store interfaces on PostgreSQL. Each
// conceptual table has one store type; all of them translate driver errors
// through MapError so callers only ever see the store sentinel errors.
package postgres
