package main

import "github.com/trustpledge/pledged/internal/cli"

func main() {
	cli.Execute()
}
