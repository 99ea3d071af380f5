// Command smsctl runs the connector core daemon and drives it over its admin API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/danmuck/smsctl/internal/logging"
)

func main() {
	_ = godotenv.Load()
	logging.ConfigureRuntime()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "smsctl: %v\n", err)
		os.Exit(1)
	}
}
