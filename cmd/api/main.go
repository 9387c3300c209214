package main

import (
	"context"

	"github.com/BradenHooton/useraccounts/internal/cli"
)

func main() {
	cli.Execute(context.Background())
}
