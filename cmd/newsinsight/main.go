package main

import "newsinsight/internal/cli"

func main() {
	cli.Execute()
}
