package main

import "trading-buddy/internal/cli"

func main() {
	cli.Execute()
}
