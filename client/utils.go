package client

import (
	"context"
	"strings"

	"github.com/wtcops/resyncd/client/httpclient"

	cli "github.com/urfave/cli/v3"
)

// CommandHTTP checks the required arguments of the command and calls
// fns one by one with the first argument and the API client.
func CommandHTTP(ctx context.Context, c *cli.Command, fns ...func(context.Context, string, *cli.Command, *httpclient.Client) error) error {
	if c.Args().Len() < countRequiredArgs(c.ArgsUsage) {
		cli.ShowSubcommandHelpAndExit(c, 1)
	}

	apiClient, err := ClientFromContext(ctx)
	if err != nil {
		return err
	}

	arg := c.Args().First()

	for _, fn := range fns {
		if err := fn(ctx, arg, c, apiClient); err != nil {
			return err
		}
	}

	return nil
}

func countRequiredArgs(s string) (c int) {
	for _, v := range strings.Fields(s) {
		if !strings.HasPrefix(v, "[") {
			c++
		}
	}
	return c
}
