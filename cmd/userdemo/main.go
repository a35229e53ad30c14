/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Command userdemo runs the user repository walkthrough against the
// configured store.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
