package main

import "github.com/oshokin/building-safety/cmd/callpoint/cmd"

func main() {
	cmd.Execute()
}
