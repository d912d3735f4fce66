// Package apac exposes the operation helper builder.
package apac

import (
	"github.com/adamwoolhether/apac/client"
)

// New instantiates a new *OperationHelper with the provided config and options.
// If not specified, a fresh http.Client over http.DefaultTransport is used.
func New(cfg client.Config, opts ...client.Option) (*client.OperationHelper, error) {
	return client.Build(cfg, opts...)
}
