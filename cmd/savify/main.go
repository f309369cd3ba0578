package main

import (
	"os"

	"github.com/savify/savify/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
