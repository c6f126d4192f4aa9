// ABOUTME: Entry point for the devicedrop moderation console
// ABOUTME: Hands the command line to the cobra root in cli
package main

import (
	"os"

	"github.com/harperreed/devicedrop/cli"
)

func main() {
	os.Exit(cli.Execute())
}
