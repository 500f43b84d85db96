package main

import (
	"os"

	enecmder "github.com/papercomputeco/ene/cmd/ene"
)

func main() {
	cmd := enecmder.NewEneCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
