// Package worker implements the worker side of the job protocol.
//
// A worker reads job bundles from stdin, one JSON object per line, and
// answers each on stdout with a reply carrying the bundle's key. Jobs run
// concurrently, so replies may arrive in any order. The first line a worker
// prints is {"type":"ready"}. Failures the protocol has no typed reply for go
// to stderr as {key?, error}.
//
// The Dispatcher keeps two caches keyed by the directory a file resolves to
// (see FindCwd): the engine installation found for that directory, and a
// pair of engine instances built from it, one lint-only and one that fixes.
// A clear-cache job drops both.
package worker
