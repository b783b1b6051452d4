package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"stacks/internal/catalog"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	catalog.FetcherVersion = "stacks/" + version

	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
