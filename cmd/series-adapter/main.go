package main

import "github.com/i474232898/series-adapter/internal/cli"

func main() {
	cli.Execute()
}
