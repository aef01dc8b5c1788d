package main

import "github.com/kozaktomas/photo-picker/cmd"

func main() {
	cmd.Execute()
}
