package main

import "github.com/zcode-dev/agentcore/cmd"

func main() {
	cmd.Execute()
}
