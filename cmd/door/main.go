package main

import "github.com/oshokin/building-safety/cmd/door/cmd"

func main() {
	cmd.Execute()
}
