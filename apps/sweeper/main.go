// Command sweeper runs the absence sweep daemon: on a fixed schedule it
// materialises the current day's classes and marks missing students absent
// once each class window ends.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

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
	std := log.New(os.Stdout, "SWEEPER : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	if err != nil {
		std.Fatal(err)
	}

	var logger core.Logger
	if conf.Debug {
		logger = logsvc.NewConsoleLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	db, err := database.Open(conf)
	errAndDie(logger, err)
	defer func() { _ = db.Close() }()
	errAndDie(logger, db.Ping())
	sdb := sqlx.NewDb(db, conf.Database.Engine)

	classes := timetable.NewService(sqlxrepos.NewTimetableRepository(sdb), logger, conf.Location())
	att := attendance.NewService(sqlxrepos.NewAttendanceRepository(sdb), classes, logger)

	sweeper := sweepersvc.NewSweeper(classes, att, logger, "")
	errAndDie(logger, sweeper.Start())
	logger.Info("absence sweeper started")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown

	sweeper.Stop()
	logger.Info("absence sweeper stopped")
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error())
	}
}
