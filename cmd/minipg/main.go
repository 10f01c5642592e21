package main

import (
	"os"

	"github.com/jimingkang/mini-pg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
