package main

import (
	"os"

	"github.com/gcs-commerce/orderhub/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
