package main

import "merge-engine/cmd"

func main() {
	cmd.Execute()
}
