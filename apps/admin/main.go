package main

import (
	"log"
	"os"

	"github.com/cultusedu/cultus/core"
	"github.com/cultusedu/cultus/core/product"
	"github.com/cultusedu/cultus/core/progression"
	"github.com/cultusedu/cultus/core/user"
	emailsvc "github.com/cultusedu/cultus/services/email"
	logsvc "github.com/cultusedu/cultus/services/logger"
	"github.com/cultusedu/cultus/storage/database"
	sqlxrepos "github.com/cultusedu/cultus/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	svcLogger := logsvc.NewRollbarLogger(logger, conf)
	svcLogger.Enable(!conf.Debug)

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// set up services needed by the recompute command
	mailSvc := emailsvc.NewConsoleService(conf)
	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	prodSvc := product.NewService(sqlxrepos.NewProductRepository(db))
	engine, err := progression.NewEngine(progression.BoundariesFromConfig(conf))
	errAndDie(err)
	progSvc := progression.NewService(db, sqlxrepos.NewProgressionRepository(db), prodSvc, usrSvc, mailSvc, engine, svcLogger)

	core.ParseEmailTemplates(conf, svcLogger)
	user.InitTokenGen(conf)

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: usrRepo,
		progSvc: progSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
