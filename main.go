package main

import (
	"github.com/AzielCF/az-admin/cmd"
)

func main() {
	cmd.Execute()
}
