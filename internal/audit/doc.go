// Package audit emits structured security audit events.
//
// Every authorization decision on a guarded route can be recorded as a
// JSON line: who asked, what they asked for, and how the policy
// answered. Events carry the trace id when tracing is active, so a
// denial in the audit log links back to its request trace.
//
// The audit stream is separate from operational logging: it is append
// only, machine readable, and never includes credentials.
package audit
