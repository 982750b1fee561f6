package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/trezcool/ratiba/apps"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
	sweepersvc "github.com/trezcool/ratiba/services/sweeper"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db      *sql.DB
	classes *timetable.Service
	sweeper *sweepersvc.Sweeper
	timeout time.Duration
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - manage DB migrations (up, down, status, ...)")
	fmt.Println("  check - run timetable feasibility checks")
	fmt.Println("  regenerate [-groups ID,ID,...] - rebuild timetables (all groups by default)")
	fmt.Println("  sweep - mark absences for today's ended classes")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	regenerateCmd := flag.NewFlagSet("regenerate", flag.ExitOnError)
	regenerateGroups := regenerateCmd.String("groups", "", "Comma-separated group IDs to regenerate; empty means all groups.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "check":
		return cli.check()
	case "regenerate":
		if err := regenerateCmd.Parse(args[2:]); err != nil {
			return err
		}
		var groupIDs []string
		if *regenerateGroups != "" {
			for _, id := range strings.Split(*regenerateGroups, ",") {
				id = core.CleanString(id)
				if id == "" {
					return apps.NewArgumentError("-groups must be a comma-separated list of group IDs")
				}
				groupIDs = append(groupIDs, id)
			}
		}
		return cli.regenerate(groupIDs)
	case "sweep":
		ctx, cancel := cli.cmdContext()
		defer cancel()
		return cli.sweeper.Run(ctx)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) check() error {
	ctx, cancel := cli.cmdContext()
	defer cancel()

	if err := cli.classes.CheckFeasibility(ctx); err != nil {
		var infeasible *timetable.InfeasibleError
		if errors.As(err, &infeasible) {
			fmt.Println(infeasible.Error())
		}
		return err
	}
	fmt.Println("feasibility checks passed")
	return nil
}

func (cli *commandLine) regenerate(groupIDs []string) error {
	ctx, cancel := cli.cmdContext()
	defer cancel()

	n, err := cli.classes.Regenerate(ctx, groupIDs)
	if err != nil {
		return err
	}
	fmt.Printf("regenerated %d assignments\n", n)
	return nil
}

func (cli *commandLine) cmdContext() (context.Context, context.CancelFunc) {
	if cli.timeout > 0 {
		return context.WithTimeout(context.Background(), cli.timeout)
	}
	return context.WithCancel(context.Background())
}
