package etl

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/clif-consortium/clifmeds/internal/medadmin"
	"github.com/clif-consortium/clifmeds/internal/model"
)

// MedicationAdmin returns the builder of both medication_admin tables. When
// both are requested they share one extraction and classification pass.
func MedicationAdmin(deps medadmin.Deps) *Builder {
	return &Builder{
		Name:   "medication_admin",
		Tables: []string{model.TableMedAdminContinuous, model.TableMedAdminIntermittent},
		Build: func(ctx context.Context, log zerolog.Logger, tables []string) ([]model.TableSummary, error) {
			d := deps
			d.Outputs = tables
			res, err := medadmin.Build(ctx, log, d)
			if err != nil {
				return nil, err
			}
			return res.Summary.Tables, nil
		},
	}
}
