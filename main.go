// Package main is the entry point for the Aegis security operations
// platform.
package main

import (
	"context"
	"fmt"
	"os"

	"aegis/bootstrap"
	"aegis/cmd"
)

// run initializes and starts the server.
func run() error {
	ctx := context.Background()

	app, err := bootstrap.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	done := make(chan struct{})
	go func() {
		app.WaitForShutdown()
		close(done)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			app.Shutdown()
			return fmt.Errorf("server error: %w", err)
		}
	case <-done:
	}

	app.Shutdown()
	return nil
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		adminCmd := cmd.NewAdminCmd()
		adminCmd.SetArgs(os.Args[2:])
		if err := adminCmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
