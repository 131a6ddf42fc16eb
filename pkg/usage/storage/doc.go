// Package storage provides usage.Storage backends: SQLite for durable
// append-only accounting and an in-memory implementation for tests.
package storage
