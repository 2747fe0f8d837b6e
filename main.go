package main

import "github.com/naka-gawa/repo-cache/cmd"

func main() {
	cmd.Execute()
}
