// Command cachesim simulates a cache tier for high-throughput computing
// workloads: it records synthetic access traces and replays them against
// configurable cache replacement policies.
package main

import (
	"os"

	"github.com/datatier/cachesim/cmd/cachesim/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
