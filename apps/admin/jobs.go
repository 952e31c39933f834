package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) runJobs(args []string) error {
	switch args[0] {
	case "list":
		for _, name := range cli.jobs.JobNames() {
			fmt.Println(name)
		}
		return nil
	case "run":
		if len(args) < 2 {
			cli.printUsage()
			return errHelp
		}
		return cli.jobs.RunJob(context.Background(), args[1])
	default:
		return fmt.Errorf("%q: no such command", args[0])
	}
}
