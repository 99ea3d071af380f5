package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/danmuck/smsctl/internal/connector"
	"github.com/danmuck/smsctl/internal/notify"
	"github.com/danmuck/smsctl/internal/observability"
	"github.com/danmuck/smsctl/internal/recipient"
)

// alert raises one failure notification addressed to every recipient.
// Blank recipients are left out of the body and the tap address.
func (d *Dispatcher) alert(ctx context.Context, spec connector.Spec, cmd connector.Command) error {
	recipients := make([]string, 0, cmd.RecipientCount())
	for _, r := range cmd.Recipients() {
		if !recipient.Blank(r) {
			recipients = append(recipients, r)
		}
	}
	if len(recipients) == 0 {
		err := fmt.Errorf("%w: connector %s", ErrMalformedFailureState, spec.ID())
		d.log.Error().Err(err).Str("error_message", spec.ErrorMessage()).
			Msg("dispatch.Dispatcher.alert cannot address failure alert")
		observability.RecordAlert("malformed")
		return err
	}

	a := d.buildAlert(spec, cmd, notify.JoinRecipients(recipients))
	if err := d.alerts.Post(ctx, a); err != nil {
		err = fmt.Errorf("%w: alert %d: %w", ErrAlertFailure, a.ID, err)
		d.log.Error().Err(err).Str("connector", spec.ID()).Msg("dispatch.Dispatcher.alert post failed")
		observability.RecordAlert("failed")
		return err
	}
	observability.RecordAlert("posted")
	return nil
}

func (d *Dispatcher) buildAlert(spec connector.Spec, cmd connector.Command, to string) notify.Alert {
	return notify.Alert{
		ID:    d.rt.NextAlertID(),
		Title: strings.TrimSpace(d.sendFailed + " " + spec.ErrorMessage()),
		Body:  to + ": " + cmd.Text(),
		Tap: notify.TapAction{
			To:           to,
			Text:         cmd.Text(),
			ErrorMessage: spec.ErrorMessage(),
		},
		LEDColor:   notify.LEDColor,
		LEDOnMS:    notify.LEDOnMS,
		LEDOffMS:   notify.LEDOffMS,
		Vibrate:    d.prefs.VibrateOnFail(),
		Sound:      d.prefs.SoundOnFail(),
		AutoCancel: true,
		Connector:  spec.ID(),
	}
}
