package main

import "github.com/disciplesalmon/blame-previous/cmd"

func main() {
	cmd.Execute()
}
