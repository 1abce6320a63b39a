// Command offlinectl inspects and clears the pending-operation snapshot that
// the offline data layer keeps in a SQLite file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
