package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/smsctl/internal/connector"
	"github.com/danmuck/smsctl/internal/observability"
	"github.com/danmuck/smsctl/internal/recipient"
)

// persist writes one sent-message record per non-blank recipient. Each insert
// stands alone; a failed recipient does not stop the rest.
func (d *Dispatcher) persist(ctx context.Context, spec connector.Spec, cmd connector.Command) error {
	var errs []error
	written := 0
	for i, raw := range cmd.Recipients() {
		if recipient.Blank(raw) {
			continue
		}
		rec := Record{
			Address: d.normalize(raw),
			Body:    cmd.Text(),
			Read:    true,
			Type:    TypeSent,
		}
		if cmd.Deferred() {
			at := cmd.SendAt()
			rec.Date = &at
		}
		if err := d.store.Insert(ctx, rec); err != nil {
			err = fmt.Errorf("%w: recipient %d (%s): %w", ErrStoreWriteFailure, i, rec.Address, err)
			d.log.Error().Err(err).Str("connector", spec.ID()).Msg("dispatch.Dispatcher.persist insert failed")
			observability.RecordStoreWrite(false)
			errs = append(errs, err)
			continue
		}
		observability.RecordStoreWrite(true)
		written++
	}
	d.log.Debug().Str("connector", spec.ID()).Int("written", written).Int("failed", len(errs)).
		Msg("dispatch.Dispatcher.persist done")
	return errors.Join(errs...)
}
