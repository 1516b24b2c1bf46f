// Command finexctl connects to the venue, streams channel traffic, and sends
// authenticated order commands.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
