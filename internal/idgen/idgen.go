package idgen

import "github.com/google/uuid"

// NewFunc generates a unique identifier; override in tests.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new unique identifier.
func New() string { return NewFunc() }

// ProcessID returns a kind-prefixed process identifier.
func ProcessID(kind string) string { return kind + "/" + New() }
