package bus

import (
	"github.com/danmuck/smsctl/internal/envelope"
)

// Kind is the routing tag of a broadcast.
type Kind string

const (
	// KindInfo carries a connector Spec and optionally the echoed Command.
	KindInfo Kind = "info"
	// KindCaptchaRequest carries an opaque payload for the captcha screen.
	KindCaptchaRequest Kind = "captcha_request"
	// KindRun carries a Command from the core to connectors.
	KindRun Kind = "run"
)

// Wire codes carried in the frame header kind field.
const (
	codeUnknown        uint32 = 0
	codeInfo           uint32 = 1
	codeCaptchaRequest uint32 = 2
	codeRun            uint32 = 3
)

// Code returns the frame kind code for k, or 0 when k has none.
func (k Kind) Code() uint32 {
	switch k {
	case KindInfo:
		return codeInfo
	case KindCaptchaRequest:
		return codeCaptchaRequest
	case KindRun:
		return codeRun
	default:
		return codeUnknown
	}
}

// KindFromCode maps a frame kind code back to a Kind. Unknown codes map to
// the empty Kind, which no receiver accepts.
func KindFromCode(code uint32) Kind {
	switch code {
	case codeInfo:
		return KindInfo
	case codeCaptchaRequest:
		return KindCaptchaRequest
	case codeRun:
		return KindRun
	default:
		return ""
	}
}

// Broadcast is one fire-and-forget message.
type Broadcast struct {
	Kind    Kind
	Payload envelope.Envelope
	// Source names the peer that published it; empty for in-process senders.
	Source string
}
