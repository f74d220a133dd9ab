package main

import "github.com/lilendian0x00/nodeharvest/cmd"

func main() {
	cmd.Execute()
}
