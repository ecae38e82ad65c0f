package main

import "github.com/LeJamon/xrpl-ingest/internal/cli"

func main() {
	cli.Execute()
}
