package output

import "context"

// CallbackNotifier delivers completion payloads to caller-supplied URLs.
type CallbackNotifier interface {
	Notify(ctx context.Context, url string, payload any) error
}
