package main

import "github.com/otakit/courier/cmd/courier-agent/cmd"

func main() {
	cmd.Execute()
}
