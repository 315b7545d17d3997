package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ambientsaga/internal/audit"
)

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit <avatar>",
		Short: "Run integrity checks against an avatar's saga logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(args[0])
		},
	}
}

func runAudit(avatarID string) error {
	ctx := context.Background()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	report, err := audit.Run(ctx, a.store, a.catalog, avatarID)
	if err != nil {
		return err
	}

	var errorIssues []audit.Issue
	var warnIssues []audit.Issue
	for _, issue := range report.Issues {
		switch issue.Severity {
		case audit.SeverityError:
			errorIssues = append(errorIssues, issue)
		case audit.SeverityWarn:
			warnIssues = append(warnIssues, issue)
		}
	}

	fmt.Fprintf(os.Stdout, "Audited %d instances, %d transactions.\n", report.Instances, report.Transactions)
	if len(errorIssues) == 0 && len(warnIssues) == 0 {
		fmt.Fprintln(os.Stdout, "No issues found.")
		return nil
	}

	if len(errorIssues) > 0 {
		fmt.Fprintf(os.Stdout, "Errors (%d):\n", len(errorIssues))
		printIssues(os.Stdout, errorIssues)
	}
	if len(warnIssues) > 0 {
		if len(errorIssues) > 0 {
			fmt.Fprintln(os.Stdout, "")
		}
		fmt.Fprintf(os.Stdout, "Warnings (%d):\n", len(warnIssues))
		printIssues(os.Stdout, warnIssues)
	}

	if report.HasErrors() {
		return fmt.Errorf("audit found errors")
	}
	return nil
}

func printIssues(out io.Writer, issues []audit.Issue) {
	for _, issue := range issues {
		location := issue.InstanceID
		if issue.Seq > 0 {
			location = fmt.Sprintf("%s@%d", issue.InstanceID, issue.Seq)
		}
		if issue.Kind != "" {
			location = fmt.Sprintf("%s [%s]", location, issue.Kind)
		}
		fmt.Fprintf(out, "  - %s: %s (%s)\n", location, issue.Message, issue.Code)
	}
}
