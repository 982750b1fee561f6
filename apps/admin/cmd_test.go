package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"strconv"
	"testing"
	"time"

	"github.com/trezcool/ratiba/apps"
	"github.com/trezcool/ratiba/core/attendance"
	"github.com/trezcool/ratiba/core/timetable"
	logsvc "github.com/trezcool/ratiba/services/logger"
	sweepersvc "github.com/trezcool/ratiba/services/sweeper"
	"github.com/trezcool/ratiba/storage/database/inmem"
)

func setup(t *testing.T) (*commandLine, *inmem.DB) {
	t.Helper()

	db := inmem.NewDB()
	classes := timetable.NewService(inmem.NewTimetableRepository(db), testLogger(t), time.UTC)
	att := attendance.NewService(inmem.NewAttendanceRepository(db), classes, testLogger(t))

	return &commandLine{
		classes: classes,
		sweeper: sweepersvc.NewSweeper(classes, att, testLogger(t), ""),
		timeout: 5 * time.Second,
	}, db
}

func testLogger(t *testing.T) *logsvc.ConsoleLogger {
	t.Helper()
	return logsvc.NewConsoleLogger(log.New(io.Discard, "", 0))
}

func seedFeasibleCorpus(db *inmem.DB) {
	courses := db.SeedCourses(timetable.Course{Code: "MATH101", Name: "Calculus", Department: "Math", PeriodsPerWeek: 2})
	db.SeedTeachers(timetable.Teacher{Name: "Ada", Department: "Math"})
	db.SeedClassrooms(timetable.Classroom{Number: "A1", Capacity: 30})
	db.SeedTimeSlots(
		timetable.TimeSlot{Day: time.Monday, Start: timetable.MustTimeOfDay("08:00"), End: timetable.MustTimeOfDay("09:00")},
		timetable.TimeSlot{Day: time.Monday, Start: timetable.MustTimeOfDay("09:00"), End: timetable.MustTimeOfDay("10:00")},
	)
	db.SeedGroups(timetable.StudentGroup{Name: "M1", Department: "Math", Year: 1, Semester: 1, CourseIDs: []string{courses[0].ID}})
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_check(t *testing.T) {
	t.Run("empty corpus is infeasible", func(t *testing.T) {
		cli, _ := setup(t)
		err := cli.run([]string{"admin", "check"})
		var infeasible *timetable.InfeasibleError
		if !errors.As(err, &infeasible) {
			t.Fatalf("cli.run() error = %v, want InfeasibleError", err)
		}
		if infeasible.Reason != timetable.InfeasibleMissingResources {
			t.Errorf("reason = %v, want missing resources", infeasible.Reason)
		}
	})

	t.Run("feasible corpus passes", func(t *testing.T) {
		cli, db := setup(t)
		seedFeasibleCorpus(db)
		if err := cli.run([]string{"admin", "check"}); err != nil {
			t.Errorf("cli.run() unexpected error = %v", err)
		}
	})
}

func Test_commandLine_regenerate(t *testing.T) {
	cli, db := setup(t)
	seedFeasibleCorpus(db)

	var argErr *apps.ArgumentError
	if err := cli.run([]string{"admin", "regenerate", "-groups", ",,"}); !errors.As(err, &argErr) {
		t.Errorf("cli.run() error = %v, want ArgumentError", err)
	}

	if err := cli.run([]string{"admin", "regenerate"}); err != nil {
		t.Fatalf("cli.run() unexpected error = %v", err)
	}

	repo := inmem.NewTimetableRepository(db)
	assignments, err := repo.QueryAssignments(context.Background(), timetable.AssignmentFilter{})
	if err != nil {
		t.Fatalf("QueryAssignments() failed, %v", err)
	}
	if len(assignments) != 2 {
		t.Errorf("got %d assignments, want 2", len(assignments))
	}
}

func Test_commandLine_sweep(t *testing.T) {
	// no calendar configured: nothing materialises, the sweep is a no-op
	cli, db := setup(t)
	seedFeasibleCorpus(db)

	if err := cli.run([]string{"admin", "sweep"}); err != nil {
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}
