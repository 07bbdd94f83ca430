package main

import "github.com/deckhand/deckhand/cmd/deckhand-ctl/cmd"

func main() {
	cmd.Execute()
}
