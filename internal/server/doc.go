// Package server wires the HTTP surface: guarded pages, guarded API
// routes, health and metrics endpoints, and the ambient middleware
// (request ids, access logging, panic recovery).
//
// Built-in routes cover the login page and one landing page per role;
// additional guarded routes come from the configuration file. All
// policies are declared at route registration and never change at
// runtime.
package server
