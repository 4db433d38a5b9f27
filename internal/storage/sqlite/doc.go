// Package sqlite persists analysis products: runs, per-telescope
// image parameters, and stereo reconstructions. Stores share a single
// *sql.DB and serialise writes through a busy-retry wrapper so the
// collector goroutine and ad-hoc readers can coexist.
package sqlite
