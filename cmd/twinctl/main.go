package main

import "github.com/oshokin/building-safety/cmd/twinctl/cmd"

func main() {
	cmd.Execute()
}
