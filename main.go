package main

import "github.com/ValentinKolb/fanout/cmd"

func main() {
	cmd.Execute()
}
