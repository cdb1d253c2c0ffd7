package main

import "history-forwarder/cmd"

func main() {
	cmd.Execute()
}
