package main

import "github.com/otakit/courier/cmd/courier-publisher/cmd"

func main() {
	cmd.Execute()
}
