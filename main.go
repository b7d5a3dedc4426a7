package main

import "github.com/diagflow/diagflow/cmd"

func main() {
	cmd.Execute()
}
