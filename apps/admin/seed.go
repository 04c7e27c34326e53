package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) seed() error {
	report, err := cli.progSvc.Seed(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf(
		"roles: %d created, %d refreshed; base costs: %d created, %d refreshed\n",
		report.RolesCreated, report.RolesUpdated, report.BaseCostsCreated, report.BaseCostsUpdated,
	)
	return nil
}
