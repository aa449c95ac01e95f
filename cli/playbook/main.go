package main

import (
	"os"

	playbookcmder "github.com/papercomputeco/playbook/cmd/playbook"
)

func main() {
	cmd := playbookcmder.NewPlaybookCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
