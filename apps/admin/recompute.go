package main

import (
	"context"
	"fmt"
)

// recompute re-runs the rule engine over a student's stored results. The
// engine being pure, running it twice over the same results is a no-op.
func (cli *commandLine) recompute(studentID, productID string) error {
	outcome, err := cli.progSvc.Recompute(context.Background(), studentID, productID)
	if err != nil {
		return err
	}
	fmt.Printf(
		"student %s, product %s: tier=%s star=%d (completed %d/%d)\n",
		studentID, productID,
		outcome.State.Tier, outcome.State.StarLevel,
		outcome.TierOutcome.CompletedCount, outcome.TierOutcome.TotalCount,
	)
	return nil
}
