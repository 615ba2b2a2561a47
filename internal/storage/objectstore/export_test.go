package objectstore

// S3Client is the interface for the underlying object store client, exported for tests.
type S3Client = s3Client

// WithNewClient overrides the default function used to create the object store client.
func WithNewClient(newClient func(cfg Config) (S3Client, error)) Options {
	return func(o *options) {
		o.newClient = newClient
	}
}
