// Package core provides the foundational domain types and contracts used by
// sessionmesh. It defines:
//
//   - UserSession (one user's login state and last request outcome)
//   - RequestType / RequestStatus (dispatch bookkeeping enums)
//   - SessionRegistry (the contract for the in-memory session tracker)
//   - DocumentStore (the key-addressed persistence capability)
//   - The error taxonomy shared by every layer
//
// Implementations (registry, stores, dispatcher) live in their own packages
// and depend on these interfaces so backends can be swapped at wiring time
// without touching calling code.
package core
