package main

import (
	"fmt"

	"github.com/ivcap-works/gosse/cmd/ssecat"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ssecat.Execute(fmt.Sprintf("%s|%s|%s", version, commit[:7], date))
}
