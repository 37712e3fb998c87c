package main

import "github.com/pywatch/pywatch/cmd"

func main() {
	cmd.Execute()
}
