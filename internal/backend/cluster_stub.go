//go:build !cluster

package backend

import "fmt"

func newClusterBackend() (Backend, error) {
	return nil, fmt.Errorf("%w: cluster support not compiled in; rebuild with -tags cluster", ErrUnavailable)
}
