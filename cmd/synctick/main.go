// Command synctick exercises the main-goroutine synchronization runtime.
//
// Usage:
//
//	synctick bench --producers 8 --events 10000
//
// Flags default to SYNCTICK_* and SYNC_* environment variables, and a .env file
// in the working directory is loaded first.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "synctick:", err)
		stop()
		os.Exit(1)
	}
}
