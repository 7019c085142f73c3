// opsharness provisions OpenSwitch containers and drives their shells from
// the command line.
package main

import "github.com/acolita/openswitch-harness/cmd/opsharness/commands"

func main() {
	commands.Execute()
}
