package medadmin

import "github.com/clif-consortium/clifmeds/internal/model"

// ErrIntegrity is returned, wrapped, whenever a stage changes a row count it
// must preserve.
var ErrIntegrity = model.ErrIntegrity
