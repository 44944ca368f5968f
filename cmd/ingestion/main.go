package main

import (
	"os"
)

func main() {
	command := NewIngestionCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
