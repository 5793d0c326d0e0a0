// Command code-winstaller downloads, verifies and silently runs the VS Code user installer.
package main

import "github.com/oshokin/code-winstaller/cmd/code-winstaller/cmd"

func main() {
	cmd.Execute()
}
