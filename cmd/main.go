package main

import (
	"os"
)

func main() {
	if err := buildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}
