package intake

import "time"

var (
	ParseDataURI = parseDataURI
	ObjectName   = objectName
)

func WithNow(now func() time.Time) Options {
	return func(o *options) {
		o.now = now
	}
}

func WithMaxConcurrent(n int) Options {
	return func(o *options) {
		o.maxConcurrent = n
	}
}

func WithUploadTimeout(d time.Duration) Options {
	return func(o *options) {
		o.uploadTimeout = d
	}
}
