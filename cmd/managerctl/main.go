package main

import "github.com/xiaozhi/managerctl/internal/cli"

func main() {
	cli.Execute()
}
