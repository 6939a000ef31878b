package main

import (
	"github.com/mchmarny/trustpulse/pkg/cli"
)

func main() {
	cli.Execute()
}
