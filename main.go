package main

import "hunter-compare/cmd"

func main() {
	cmd.Execute()
}
