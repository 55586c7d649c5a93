// Command livecontrol drives live-commerce control consoles for several
// accounts at once: it keeps one browser per account, watches whether each
// account is broadcasting and runs the reply, speak and popup features.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
