// Package store defines the persistence contract the crawler resolves
// entities against. Implementations live in internal/storage; this package
// must not import database drivers or concrete clients.
package store
