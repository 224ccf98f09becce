package main

import (
	"os"

	"github.com/dyike/TradeLens/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
