// Package notify holds the alert record raised for failed sends and the
// log-backed surfaces the daemon posts alerts and captcha requests to.
package notify

import (
	"net/url"
	"strings"
)

// LED defaults for failure alerts.
const (
	LEDColor uint32 = 0xffff0000
	LEDOnMS         = 500
	LEDOffMS        = 2000
)

// TapAction re-opens the compose surface pre-filled with the failed send.
type TapAction struct {
	To           string `json:"to"`
	Text         string `json:"text"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// URI renders the action as an smsto: URI carrying the text as body.
func (a TapAction) URI() string {
	u := "smsto:" + url.PathEscape(a.To)
	if a.Text == "" {
		return u
	}
	return u + "?body=" + url.QueryEscape(a.Text)
}

// Alert is a user-facing failure notification. It is never persisted.
type Alert struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Tap        TapAction `json:"tap"`
	LEDColor   uint32    `json:"led_color"`
	LEDOnMS    int       `json:"led_on_ms"`
	LEDOffMS   int       `json:"led_off_ms"`
	Vibrate    bool      `json:"vibrate"`
	Sound      string    `json:"sound,omitempty"`
	AutoCancel bool      `json:"auto_cancel"`
	Connector  string    `json:"connector,omitempty"`
}

// JoinRecipients renders recipients the way alert bodies list them.
func JoinRecipients(recipients []string) string {
	return strings.Join(recipients, ", ")
}
