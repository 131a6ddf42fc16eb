// Package credentials loads and holds the identity-to-secret mapping used to
// authorize proxy traffic.
//
// The store is built once at startup from a credential file (identity=secret
// lines), inline configuration, or both, and is immutable for the process
// lifetime. There is no hot reload: rotating a credential means restarting
// the proxy.
package credentials
