package main

import "github.com/naka-gawa/github-taskmail/cmd"

func main() {
	cmd.Execute()
}
