// Package kv provides a persistent key-value storage layer on top of a
// relational database. It exposes named tables of key->blob rows with
// CRUD, counting, streaming iteration and folding, and single persistent
// cells with lazy default initialization, while connection pooling and
// value serialization are handled underneath.
package kv
