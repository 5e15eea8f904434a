// Command twofactl manages 2FA records directly in a configured store.
//
// Settings are read from flags, TWOFACTL_* environment variables and
// $HOME/.twofactl.yaml, in that order of precedence.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
