package main

import "github.com/ppiankov/intentguard/internal/cli"

func main() {
	cli.Execute()
}
