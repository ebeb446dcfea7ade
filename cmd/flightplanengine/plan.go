package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/log"
)

var (
	planProject string
	planTitle   string
	planData    string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage the flight plans stored on this device",
}

var planCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Store a new editable flight plan",
	Long: `Store a new editable flight plan. --data is a JSON data setting:
waypoints, points of interest and the return-to-home options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(false)
		if err != nil {
			return err
		}
		ds, err := readDataSetting(planData)
		if err != nil {
			return err
		}

		mgr, _, closeStore, err := openManager(c, log.New("warn", c.Log.Dir))
		if err != nil {
			return err
		}
		defer closeStore()

		fp := mgr.Create(planProject, planTitle, ds)
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (project %s)\n", green("Created"), fp.UUID, fp.ProjectUUID)
		return nil
	},
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored flight plans, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(false)
		if err != nil {
			return err
		}
		_, db, closeStore, err := openManager(c, log.New("warn", c.Log.Dir))
		if err != nil {
			return err
		}
		defer closeStore()

		ctx := context.Background()
		var plans []*flightplan.FlightPlan
		if planProject != "" {
			plans, err = db.ListByProject(ctx, planProject)
		} else {
			plans, err = db.ListAll(ctx)
		}
		if err != nil {
			return err
		}
		printPlans(cmd.OutOrStdout(), plans)
		return nil
	},
}

func init() {
	planCreateCmd.Flags().StringVar(&planProject, "project", "", "Project uuid, generated when empty")
	planCreateCmd.Flags().StringVar(&planTitle, "title", "", "Flight plan title")
	planCreateCmd.Flags().StringVar(&planData, "data", "", "JSON data setting file")
	_ = planCreateCmd.MarkFlagRequired("title")
	_ = planCreateCmd.MarkFlagRequired("data")

	planListCmd.Flags().StringVar(&planProject, "project", "", "Only list this project")

	planCmd.AddCommand(planCreateCmd, planListCmd)
	rootCmd.AddCommand(planCmd)
}

func readDataSetting(path string) (*flightplan.DataSetting, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "read data setting")
	}
	var ds flightplan.DataSetting
	if err := json.Unmarshal(b, &ds); err != nil {
		return nil, errors.WithMessagef(err, "parse data setting %s", path)
	}
	if len(ds.Waypoints) == 0 {
		return nil, errors.Errorf("%s has no waypoint", path)
	}
	return &ds, nil
}

var planStateColors = map[flightplan.State]*color.Color{
	flightplan.StateEditable:  color.New(color.FgGreen),
	flightplan.StateFlying:    color.New(color.FgBlue, color.Bold),
	flightplan.StateStopped:   color.New(color.FgYellow),
	flightplan.StateCompleted: color.New(color.FgHiBlack),
}

func printPlans(w io.Writer, plans []*flightplan.FlightPlan) {
	if len(plans) == 0 {
		fmt.Fprintf(w, "  %s\n", color.New(color.FgHiBlack).Sprint("No flight plans"))
		return
	}
	for _, fp := range plans {
		fmt.Fprintln(w, formatPlan(fp))
	}
}

func formatPlan(fp *flightplan.FlightPlan) string {
	c, ok := planStateColors[fp.State]
	if !ok {
		c = color.New(color.Reset)
	}
	line := fmt.Sprintf("%s  %-10s %s", fp.UUID, c.Sprint(fp.State), fp.Title)
	if fp.IsExecution() {
		line += fmt.Sprintf("  item %d, %s", fp.LastMissionItemExecuted, fp.Duration)
	}
	return line + "  " + fp.LastUpdate.Format("2006-01-02 15:04:05")
}
