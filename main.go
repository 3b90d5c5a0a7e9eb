package main

import (
	"os"

	"github.com/voltswap/voltswap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
