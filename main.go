package main

import "newsmosaic/cmd/cmd"

func main() {
	cmd.Execute()
}
