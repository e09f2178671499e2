// Command b3tracker tracks a B3 portfolio from the investor-area export.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"b3-tracker/internal/cli"
	"b3-tracker/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// configuration is loaded by the root command once --config is parsed
	logger := logging.NewLoggerWithConfig(logging.LogConfig{Level: "info", Console: true})
	root := cli.NewRootCmd(nil, logger)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
