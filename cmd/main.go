package main

import (
	"os"

	"github.com/soundprediction/chronotope/cmd/chronotope"
)

func main() {
	if err := chronotope.Execute(); err != nil {
		os.Exit(1)
	}
}
