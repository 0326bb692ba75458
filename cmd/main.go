package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dailybuy/cmd/dailybuy"
	"dailybuy/src/database"
	"dailybuy/src/security"
	"dailybuy/src/server"
	"dailybuy/src/utils"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	utils.SetupLogger()

	app := cli.NewApp()
	app.Name = "dailybuy"
	app.Usage = "Recurring crypto purchases on Coinbase"
	app.Version = Version

	app.Commands = []cli.Command{
		serveCMD,
		dailyBuyCMD,
		statsCMD,
		importCMD,
		hashTokenCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var fileFlag = cli.StringFlag{
	Name:  "file, f",
	Usage: "JSON request file, same shape as the HTTP body",
}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the HTTP trigger server",
		Action:      serveAction,
		Flags:       []cli.Flag{cli.StringFlag{Name: "port", Usage: "listen port, defaults to SERVER_PORT"}},
		Description: `Serve /daily-buy, /crypto-stats, /accounts, /healthcheck and /metrics`,
	}
	dailyBuyCMD = cli.Command{
		Name:        "dailybuy",
		Usage:       "run one daily buy",
		Action:      dailyBuyAction,
		Flags:       []cli.Flag{fileFlag},
		Description: `Plan, deposit and place limit buys for the request file`,
	}
	statsCMD = cli.Command{
		Name:        "stats",
		Usage:       "print the cost basis of products",
		Action:      statsAction,
		Flags:       []cli.Flag{fileFlag},
		Description: `Report totals, average cost and time since last buy`,
	}
	importCMD = cli.Command{
		Name:   "import",
		Usage:  "import a CSV of fills into supplemental_fills",
		Action: importAction,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "file, f", Usage: "CSV with product,side,size,price,created_at columns"},
			cli.StringFlag{Name: "source, s", Usage: "source tag used by database.names"},
		},
		Description: `Import supplemental fills`,
	}
	hashTokenCMD = cli.Command{
		Name:        "hash-token",
		Usage:       "print the bcrypt hash for TRIGGER_TOKEN_HASH",
		ArgsUsage:   "<token>",
		Action:      hashTokenAction,
		Description: `Hash a trigger token`,
	}
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func serveAction(c *cli.Context) error {
	logrus.Info("Starting serve CMD")

	if database.Enabled() {
		if err := database.InitMainDB(); err != nil {
			logrus.WithError(err).Fatal("Failed to connect to database")
		}
		if err := database.InitReadOnlyDB(); err != nil {
			logrus.WithError(err).Fatal("Failed to connect to database")
		}
	}

	server.StartServer(c.String("port"))
	return nil
}

func dailyBuyAction(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	runner := &dailybuy.Runner{File: c.String("file"), Log: logrus.WithField("cmd", "dailybuy")}
	if err := runner.DailyBuy(ctx); err != nil {
		logrus.WithError(err).Error("Daily buy CMD")
		return err
	}
	return nil
}

func statsAction(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	runner := &dailybuy.Runner{File: c.String("file"), Log: logrus.WithField("cmd", "stats")}
	if err := runner.Stats(ctx); err != nil {
		logrus.WithError(err).Error("Stats CMD")
		return err
	}
	return nil
}

func importAction(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	importer := &dailybuy.Importer{
		File:   c.String("file"),
		Source: c.String("source"),
		Log:    logrus.WithField("cmd", "import"),
	}
	if err := importer.Start(ctx); err != nil {
		logrus.WithError(err).Error("Import CMD")
		return err
	}
	return nil
}

func hashTokenAction(c *cli.Context) error {
	hash, err := security.HashTriggerToken(c.Args().First())
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
