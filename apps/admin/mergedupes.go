package main

import (
	"context"
	"fmt"

	"github.com/tutorhub/backend/core/user"
)

// mergeDupes consolidates accounts sharing an email (case-insensitive) into the
// oldest one. Failed groups are reported but do not abort the run.
func (cli *commandLine) mergeDupes(dryRun bool, email string) error {
	report, err := cli.usrSvc.MergeDuplicateAccounts(context.Background(), user.MergeOptions{
		DryRun: dryRun,
		Email:  email,
	})
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Println("dry run: no changes written")
	}
	if len(report.Groups) == 0 {
		fmt.Println("no duplicate accounts found")
		return nil
	}
	for _, group := range report.Groups {
		fmt.Println(group.String())
	}
	fmt.Printf("%d group(s) merged, %d failed\n", report.MergedCount(), report.FailedCount())
	return nil
}
