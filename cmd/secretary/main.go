// Command secretary runs the clinic scheduling assistant.
package main

import (
	"os"

	"github.com/raphaelgruber/secretary-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
