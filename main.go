package main

import (
	"fmt"
	"os"
	"time"

	"github.com/LeeDigitalWorks/ensure-buckets/cmd"

	"github.com/getsentry/sentry-go"
)

func main() {
	// DSN, environment and release come from SENTRY_DSN and friends; with no
	// DSN the client is a no-op.
	err := sentry.Init(sentry.ClientOptions{
		SampleRate:       1.0,
		AttachStacktrace: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentry.Init: %v", err)
	}
	// Flush buffered events before the program terminates.
	defer sentry.Flush(2 * time.Second)

	cmd.Execute()
}
