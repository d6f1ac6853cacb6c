// Package api defines the core wire types shared across the pipeline
// orchestration server: structured errors, opaque id generation, and the
// tool-definition shape advertised to the upstream agent runtime.
//
// Apart from github.com/google/uuid, which supplies the randomness for ids,
// the package depends only on the Go standard library, and it performs no
// I/O.
package api
