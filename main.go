package main

import "github.com/frahmantamala/tonpay/cmd"

func main() {
	cmd.Execute()
}
