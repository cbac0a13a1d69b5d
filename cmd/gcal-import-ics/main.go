package main

import "github.com/pschmitt/gcal-import-ics/internal/cli"

func main() {
	cli.Execute()
}
