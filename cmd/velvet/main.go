package main

import "github.com/aman-zulfiqar/private-swap/internal/cli"

func main() {
	cli.Execute()
}
