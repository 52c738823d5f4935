package main

import (
	"arcade/cmd/arcade-bot/cmd"
)

func main() {
	cmd.Execute()
}
