// adbfb - browse, transfer and manage files on Android devices through adb.
package main

import (
	"os"

	"github.com/adbfb/adbfb/internal/cli"
	"github.com/adbfb/adbfb/internal/version"
)

// Version information, overridden by ldflags.
var (
	Version   = "v0.3.0"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
