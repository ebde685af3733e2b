package main

import "go2tv.app/screencap/cmd/screencap/commands"

func main() {
	commands.Execute()
}
