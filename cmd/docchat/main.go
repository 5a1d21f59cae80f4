package main

import (
	"os"

	"github.com/kalambet/docchat/internal/backend"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printError("%s", backend.Message(err))
		os.Exit(1)
	}
}
