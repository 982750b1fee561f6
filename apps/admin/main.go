package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/attendance"
	"github.com/trezcool/ratiba/core/timetable"
	logsvc "github.com/trezcool/ratiba/services/logger"
	sweepersvc "github.com/trezcool/ratiba/services/sweeper"
	"github.com/trezcool/ratiba/storage/database"
	"github.com/trezcool/ratiba/storage/database/sqlxrepos"
)

func main() {
	defer os.Exit(0)

	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewConsoleLogger(std)

	conf, err := core.NewConfig()
	errAndDie(logger, err)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(logger, err)
	defer func() { _ = db.Close() }()
	errAndDie(logger, db.Ping())
	sdb := sqlx.NewDb(db, conf.Database.Engine)

	classes := timetable.NewService(sqlxrepos.NewTimetableRepository(sdb), logger, conf.Location())
	att := attendance.NewService(sqlxrepos.NewAttendanceRepository(sdb), classes, logger)

	// start CLI
	cli := commandLine{
		db:      db,
		classes: classes,
		sweeper: sweepersvc.NewSweeper(classes, att, logger, ""),
		timeout: conf.SchedulerTimeout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error())
	}
}
