// Command searchengine is the single executable for every long-running
// or one-shot process this module defines: crawler pool, indexer pool,
// optimizer loop, rebooster, delta-merge, and the lock-service manager.
// Exactly one mode flag selects the role; see internal/cli.
package main

import (
	cmd "github.com/edmiester777/search-engine/internal/cli"
)

func main() {
	cmd.Execute()
}
