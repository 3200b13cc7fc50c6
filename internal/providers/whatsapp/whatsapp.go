package whatsapp

import "context"

// Sender is the outbound messaging gateway. Recipients are
// phone-number-shaped ids without the "+" prefix.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
	SendMedia(ctx context.Context, to, mediaURL string) error
}
