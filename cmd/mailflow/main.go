package main

import "github.com/agusx1211/mailflow/internal/cli"

func main() {
	cli.Execute()
}
