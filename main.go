package main

import "github.com/devicelab-dev/screenstate/pkg/cli"

func main() {
	cli.Execute()
}
