// Command clancha runs the safeguard classifier locally and serves the
// rewrite endpoint over plain HTTP for development.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
