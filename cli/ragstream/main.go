package main

import (
	"os"

	ragstreamcmder "github.com/papercomputeco/ragstream/cmd/ragstream"
)

func main() {
	cmd := ragstreamcmder.NewRagstreamCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
