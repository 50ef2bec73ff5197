package main

import "github.com/tidepool-org/cardiac/api"

func main() {
	api.MainLoop()
}
