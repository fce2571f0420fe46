package main

import (
	"os"

	spyrecmder "github.com/papercomputeco/spyre/cmd/spyre"
)

func main() {
	cmd := spyrecmder.NewSpyreCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
