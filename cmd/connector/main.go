// Package main is the entry point for the connector binary: the HTTP
// service and one-shot catalog commands.
package main

import (
	"os"

	"fedcat/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
