package main

import "shiftcast/cmd"

func main() {
	cmd.Execute()
}
