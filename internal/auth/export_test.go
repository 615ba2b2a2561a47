package auth

import "time"

func WithNow(now func() time.Time) Options {
	return func(o *options) {
		o.now = now
	}
}
