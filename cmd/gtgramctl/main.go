package main

import "go.pilab.hu/gtgram/cmd/gtgramctl/cmd"

func main() {
	cmd.Execute()
}
