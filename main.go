package main

import "github.com/JonasWeidner/oDB/cmd"

func main() {
	cmd.Execute()
}
