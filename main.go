// The main package for the shelfscan executable.
package main

import "github.com/JakeFAU/shelfscan/cmd"

func main() {
	cmd.Execute()
}
