package main

import "github.com/cameronsjo/roger/internal/cmd"

func main() {
	cmd.Execute()
}
