package main

import "github.com/ferreiradluan/Ze-da-Fruta-sub002/cmd"

func main() {
	cmd.Execute()
}
