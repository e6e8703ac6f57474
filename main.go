package main

import "PlaylistInsight/cmd"

func main() {
	cmd.Execute()
}
