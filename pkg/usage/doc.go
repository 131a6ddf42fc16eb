// Package usage defines the usage record model and the append-only storage
// interface behind it.
//
// Every request the proxy dispositions produces exactly one record: outcome
// "authorized" for forwarded requests, "denied" for rejected ones. Records
// are written asynchronously by the recorder subpackage so storage latency
// never sits on the request path, and read back by the usage endpoint and
// the CLI through the Storage interface. Backends live in the storage
// subpackage; swapping SQLite for another sink touches nothing outside it.
package usage
