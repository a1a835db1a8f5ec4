// Package api defines the core data types shared by the workflow runners
//
// This package contains the step contract: the input a handler receives, the
// result it returns, the diagnostic messages it emits, and the dependencies
// injected into it. Both the local runner and the single-step runner speak
// these types, so a handler behaves identically under either front-end
package api
