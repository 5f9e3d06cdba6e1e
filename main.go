package main

import (
	"github.com/teemow/autoreplier/cmd"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
