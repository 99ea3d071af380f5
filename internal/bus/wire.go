package bus

import (
	"errors"
	"fmt"

	"github.com/danmuck/smsctl/internal/envelope"
	"github.com/danmuck/smsctl/internal/protocol/frame"
)

var ErrUnknownKind = errors.New("bus: kind has no wire code")

// EncodeFrame wraps b for the wire. A non-empty token rides in the auth block.
func EncodeFrame(b Broadcast, messageID uint64, token string) (frame.Frame, error) {
	code := b.Kind.Code()
	if code == codeUnknown {
		return frame.Frame{}, fmt.Errorf("%w: %q", ErrUnknownKind, b.Kind)
	}
	f := frame.Frame{
		Header: frame.Header{
			MessageID: messageID,
			Kind:      code,
		},
		Payload: envelope.Marshal(b.Payload),
	}
	if token != "" {
		f.Auth = []byte(token)
	}
	return f, nil
}

// DecodeFrame unwraps a frame into a broadcast and the token it carried.
// Unknown kind codes decode to the empty Kind.
func DecodeFrame(f frame.Frame) (Broadcast, string, error) {
	env, err := envelope.Unmarshal(f.Payload)
	if err != nil {
		return Broadcast{}, "", err
	}
	return Broadcast{Kind: KindFromCode(f.Header.Kind), Payload: env}, string(f.Auth), nil
}
