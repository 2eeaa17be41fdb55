package main

import "github.com/oshokin/building-safety/cmd/firealarm/cmd"

func main() {
	cmd.Execute()
}
