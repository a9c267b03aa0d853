package main

import "github.com/killallgit/loom/cmd"

func main() {
	cmd.Execute()
}
