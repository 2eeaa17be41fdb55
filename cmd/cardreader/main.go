package main

import "github.com/oshokin/building-safety/cmd/cardreader/cmd"

func main() {
	cmd.Execute()
}
