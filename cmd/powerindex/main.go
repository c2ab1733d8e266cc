package main

import "powerindex/internal/cli"

func main() {
	cli.Execute()
}
