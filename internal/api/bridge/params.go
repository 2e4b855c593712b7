// Package bridge exposes the cache layer's reads and intents as JSON-RPC
// methods for presentation code.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/steemit/feedclient/internal/service"
)

// decode reads named parameters into dst. Absent params leave dst as is.
func decode(params json.RawMessage, dst interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := sonic.Unmarshal(params, dst); err != nil {
		return fmt.Errorf("%w: invalid parameters format: %v", service.ErrValidation, err)
	}
	return nil
}

// await blocks for the confirmation of a mutation when the caller asked
// to wait, otherwise the optimistic result is returned right away.
func await(ctx context.Context, done <-chan error, wait bool) error {
	if !wait {
		return nil
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
