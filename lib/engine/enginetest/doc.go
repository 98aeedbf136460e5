// Package enginetest provides a reusable conformance test suite for
// implementations of the engine contract. Engine packages call
// RunEngineTests from their own tests with a factory that yields a fresh,
// empty engine per invocation.
package enginetest
