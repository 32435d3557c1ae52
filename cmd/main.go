package main

import (
	"os"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
