// The main package for the slotwatcher executable.
package main

import (
	"github.com/Kumzy/doctolib-watcher/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
