package main

import (
	"os"

	"github.com/conneroisu/assemble/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
