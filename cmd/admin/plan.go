package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"jobgenie/internal/database"
	"jobgenie/internal/quota"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect or override subscription plans",
}

var planSetCmd = &cobra.Command{
	Use:   "set <user-id> <free|pro|unlimited>",
	Short: "Force a user's plan without going through billing",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlanSet,
}

var usageCmd = &cobra.Command{
	Use:   "usage <user-id>",
	Short: "Show the current period's document allowance",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsage,
}

func init() {
	planCmd.AddCommand(planSetCmd)
	rootCmd.AddCommand(planCmd, usageCmd)
}

func runPlanSet(cmd *cobra.Command, args []string) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	_, db, err := openDatabase()
	if err != nil {
		return err
	}
	if err := quota.NewGate(db).SetPlan(cmd.Context(), userID, args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "user %d is now on plan %s\n", userID, args[1])
	return nil
}

func runUsage(cmd *cobra.Command, args []string) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	_, db, err := openDatabase()
	if err != nil {
		return err
	}

	gate := quota.NewGate(db)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tPLAN\tUSED\tLIMIT\tPERIOD START")
	for _, docType := range []string{database.DocumentTypeResume, database.DocumentTypeCoverLetter} {
		a, err := gate.Allowance(cmd.Context(), userID, docType)
		if err != nil {
			return err
		}
		limit := strconv.Itoa(a.Limit)
		if a.Unlimited {
			limit = "unlimited"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", a.DocType, a.Plan, a.Used, limit, a.PeriodStart.Format("2006-01-02"))
	}
	return w.Flush()
}

func parseUserID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return uint(id), nil
}
