package main

import "github.com/hed1ad/wqguard/internal/cli"

func main() {
	cli.Execute()
}
