package main

import "github.com/tidepool-org/cardiac/cmd/cardiac/command"

func main() {
	command.Execute()
}
