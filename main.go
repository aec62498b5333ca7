package main

import "github.com/RenatoUtsch/redes-tp3/cmd"

func main() {
	cmd.Execute()
}
