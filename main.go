// nconnect resolves a host name and connects to it, directly or
// through a SOCKS5 proxy or an SSH gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nconnect/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "nconnect: %v\n", err)
		os.Exit(1)
	}
}
