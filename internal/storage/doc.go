// Package storage provides the SQLite-backed todo and meta repositories, the
// numbered schema migrations, and the single-writer store handle that
// serializes every operation against the database file.
package storage
