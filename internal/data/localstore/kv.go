package localstore

import "context"

// KV is the key-value backend behind the progress store, the server-side
// analogue of browser local storage. Values are opaque strings.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Keys lists every key starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
