// Command device-login signs a CLI in through the OAuth 2.0 device authorization grant
package main

import (
	"os"
)

// Version is set by the build process
var Version = "dev"

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
