package main

import (
	"fmt"
	"time"

	"dailybuy/src/database"
	"dailybuy/src/server"
	"dailybuy/src/utils"

	logger "github.com/sirupsen/logrus"
)

func main() {
	utils.SetupLogger()
	defer handlePanic()

	if database.Enabled() {
		// Initialize main (read/write) database
		if err := database.InitMainDB(); err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}

		// Initialize read-only database
		if err := database.InitReadOnlyDB(); err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
	}

	server.StartServer(server.GetConfig().Port)
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", utils.GetConfig().AppName))
		// let log shippers flush
		time.Sleep(time.Second * 5)
	}
}
