package main

import "github.com/lootsift/lootsift/cmd/lootsift/cmd"

func main() {
	cmd.Execute()
}
