// Command stickynotes runs the sticky notes storage server and its
// maintenance commands.
package main

import "github.com/user/stickynotes/internal/cli"

func main() {
	cli.Execute()
}
