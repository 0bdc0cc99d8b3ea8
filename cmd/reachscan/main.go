package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/projectdiscovery/gologger"

	"github.com/marcuoli/go-reachscan/internal/runner"
)

func main() {
	options := runner.ParseOptions()

	reachRunner, err := runner.NewRunner(options)
	if err != nil {
		gologger.Fatal().Msgf("Could not create runner: %s\n", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup close handler
	go func() {
		<-c
		fmt.Println("\r- Ctrl+C pressed in Terminal, saving completed results...")
		cancel()
	}()

	if err := reachRunner.Run(ctx); err != nil {
		gologger.Fatal().Msgf("Could not run reachscan: %s\n", err)
	}
}
