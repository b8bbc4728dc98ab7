// Package postgres implements store.Repository on PostgreSQL with pgx.
//
// Every save is an INSERT ... ON CONFLICT DO NOTHING RETURNING id on the
// entity's natural key; when the row already exists the stored record is
// read back instead, so concurrent or repeated crawls never duplicate rows.
// Foreign key violations surface as store.ErrMissingReference.
package postgres
