// Package dispatch implements the request dispatcher: it gates a read or
// write on the user's session state, performs it against a
// core.DocumentStore and records the outcome back into the
// core.SessionRegistry.
//
// The dispatcher owns no session state. It never holds a registry lock
// across a store call: the login check, the store round-trip and the
// outcome bookkeeping are three separate steps, so a slow store only delays
// the request in flight and never the logins or requests of other users.
//
// Every dispatch runs inside an OpenTelemetry span named "dispatch". With no
// tracer provider registered the global no-op tracer is used.
package dispatch
