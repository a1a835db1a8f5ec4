package main

import (
	"os"

	"github.com/opsforge/taskkit/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
