package main

import "github.com/Rorical/streamchat/cmd"

func main() {
	cmd.Execute()
}
