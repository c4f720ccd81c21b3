package main

import (
	"os"

	"github.com/avito-tech/gravure/cmd/gravure/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
