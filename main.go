package main

import "github.com/example/order-gateway/cmd"

func main() {
	cmd.Execute()
}
