package main

import "github.com/tk103331/eino-chatlab/cmd"

func main() {
	cmd.Execute()
}
