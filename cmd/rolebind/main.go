package main

import (
	"os"

	"github.com/solatis/rolebind/cmd/rolebind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
