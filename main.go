package main

import "github.com/naka-gawa/github-metrics/cmd"

func main() {
	cmd.Execute()
}
