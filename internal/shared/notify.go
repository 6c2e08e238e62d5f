package shared

import "context"

// FlashNotifier turns store notifications into flash messages on the
// request's cookie session. Requests without a session are ignored.
type FlashNotifier struct{}

// Notify queues a flash message.
func (FlashNotifier) Notify(ctx context.Context, kind, message string) {
	if sess := SessionFromContext(ctx); sess != nil {
		sess.AddFlash(FlashMessage{Kind: kind, Message: message})
	}
}
