package main

import "github.com/vietddude/withdrawal-watcher/internal/cli"

func main() {
	cli.Execute()
}
