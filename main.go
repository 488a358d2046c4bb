package main

import "github.com/RyanBlaney/audio-emotion/cmd"

func main() {
	cmd.Execute()
}
