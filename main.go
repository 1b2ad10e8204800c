package main

import "github.com/mselser95/market-sdk/cmd"

func main() {
	cmd.Execute()
}
