package main

import "github.com/elos-os/bootimg/cmd"

func main() {
	cmd.Execute()
}
