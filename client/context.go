package client

import (
	"context"
	"fmt"

	"github.com/wtcops/resyncd/client/httpclient"
)

type apiClientKey struct{}

func AppendClientToContext(ctx context.Context, c *httpclient.Client) context.Context {
	return context.WithValue(ctx, apiClientKey{}, c)
}

func ClientFromContext(ctx context.Context) (*httpclient.Client, error) {
	if v := ctx.Value(apiClientKey{}); v != nil {
		if c, ok := v.(*httpclient.Client); ok {
			return c, nil
		} else {
			return nil, fmt.Errorf("invalid API client interface: t = %T", v)
		}
	}

	return nil, fmt.Errorf("API client not found in context")
}
