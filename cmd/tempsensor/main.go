package main

import "github.com/oshokin/building-safety/cmd/tempsensor/cmd"

func main() {
	cmd.Execute()
}
