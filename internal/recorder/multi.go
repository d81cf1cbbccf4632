package recorder

import (
	"context"
	"errors"

	"rea/internal/domain"
)

// Multi records to every sink in order. All sinks are attempted; their
// failures are joined.
type Multi []domain.RunRecorder

func (m Multi) Record(ctx context.Context, rec *domain.RunRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ domain.RunRecorder = Multi(nil)
