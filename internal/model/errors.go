package model

import "errors"

// ErrIntegrity marks a row-count invariant violation. A build that returns it
// must be aborted; nothing it produced can be trusted.
var ErrIntegrity = errors.New("data integrity violation")
