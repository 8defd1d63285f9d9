package main

import "github.com/open-feature/assignd/cmd"

func main() {
	cmd.Execute()
}
