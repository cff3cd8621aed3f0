package main

import "github.com/sheikh-saqib/wallet-ledger/internal/cli"

func main() {
	cli.Execute()
}
