// Package main provides the sourcechain CLI.
package main

import "github.com/mesh-intelligence/sourcechain/internal/cli"

func main() {
	cli.Execute()
}
