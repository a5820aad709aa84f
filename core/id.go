package core

import "github.com/google/uuid"

// NewRequestID generates a unique identifier for a dispatched request so log
// lines and spans of one request can be correlated.
func NewRequestID() string { return uuid.NewString() }
