package main

import "github.com/daap14/affconsole/cmd/affctl/cmd"

func main() {
	cmd.Execute()
}
