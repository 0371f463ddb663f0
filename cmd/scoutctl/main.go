package main

import "github.com/intentscout/scoutctl/pkg/cli"

func main() {
	cli.Execute()
}
