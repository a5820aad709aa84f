// Package store contains concrete implementations of core.DocumentStore.
//
// The canonical DocumentStore interface lives in the core package to avoid
// dependency cycles and keep domain contracts central. This package provides
// the in-memory backend, a retrying decorator and a factory (Open) that
// selects a backend by name; durable backends live in sub-packages
// (sqlite, bolt).
//
// Callers should depend on core.DocumentStore rather than concrete types so
// they can substitute alternative persistence layers in tests or production.
package store
