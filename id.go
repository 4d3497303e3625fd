package scribeq

import "github.com/scribeq/scribeq/id"

// ID is the primary identifier type for all scribeq entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
