package main

import "github.com/lockaudit/lockaudit/internal/cli"

func main() {
	cli.Execute()
}
