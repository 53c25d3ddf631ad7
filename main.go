package main

import "healthpipe/cmd"

func main() {
	cmd.Execute()
}
