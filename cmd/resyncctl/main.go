package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime"

	"github.com/wtcops/resyncd/client"
	"github.com/wtcops/resyncd/client/httpclient"

	"github.com/urfave/cli/v3"
)

// Set by the linker
var Version = "0.1.0"

var (
	Error = log.New(os.Stderr, "resyncctl: error: ", 0)
)

func main() {
	app := new(cli.Command)

	app.Name = "resyncctl"
	app.Usage = "interface for resource synchronization tasks"
	app.HideHelpCommand = true

	app.EnableShellCompletion = true

	app.Before = func(ctx context.Context, c *cli.Command) (context.Context, error) {
		return client.AppendClientToContext(ctx, httpclient.New(c.String("server"), c.String("api-key"))), nil
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Usage:   "base `URL` of the resyncd server",
			Sources: cli.EnvVars("RESYNCD_URL"),
			Value:   httpclient.DefaultURL,
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API `key` sent in the X-API-Key header",
			Sources: cli.EnvVars("RESYNCD_API_KEY"),
		},
	}

	app.Commands = []*cli.Command{
		CommandSubmit,
		CommandStatus,
		CommandList,
		CommandStream,
		CommandHealth,
		{
			Name:     "version",
			Usage:    "print the version information",
			Category: "Other",
			Action: func(_ context.Context, _ *cli.Command) error {
				fmt.Printf("v%s, (built %s)\n", Version, runtime.Version())
				return nil
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		exitWithError(err)
	}
}

func exitWithError(err error) {
	Error.Println(err)

	os.Exit(exitCode(err))
}

// exitCode maps API errors to distinct exit codes so that scripts
// can tell them apart.
func exitCode(err error) int {
	var apiErr *httpclient.APIError

	if !errors.As(err, &apiErr) {
		return 1
	}

	switch apiErr.StatusCode {
	case http.StatusNotFound:
		return 2
	case http.StatusBadRequest:
		return 3
	case http.StatusUnauthorized, http.StatusForbidden:
		return 4
	}

	return 5
}
