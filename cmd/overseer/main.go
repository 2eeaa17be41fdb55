package main

import "github.com/oshokin/building-safety/cmd/overseer/cmd"

func main() {
	cmd.Execute()
}
