package main

import (
	"log"
	"os"

	"github.com/tutorhub/backend/core"
	"github.com/tutorhub/backend/core/program"
	"github.com/tutorhub/backend/core/user"
	emailsvc "github.com/tutorhub/backend/services/email"
	"github.com/tutorhub/backend/storage/database"
	pgrepos "github.com/tutorhub/backend/storage/database/postgres"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	usrRepo := pgrepos.NewUserRepository(db)
	progRepo := pgrepos.NewProgramRepository(db)

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: usrRepo,
		usrSvc:  user.NewService(db, usrRepo, emailsvc.NewConsoleService(), conf),
		progSvc: program.NewService(progRepo),
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
