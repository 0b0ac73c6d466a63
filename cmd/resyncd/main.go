package main

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wtcops/resyncd/internal/appconf"
	"github.com/wtcops/resyncd/internal/executor"
	"github.com/wtcops/resyncd/internal/httpserver"
	"github.com/wtcops/resyncd/internal/metrics"
	"github.com/wtcops/resyncd/internal/runner"
	"github.com/wtcops/resyncd/internal/task"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
	})

	app := cli.NewApp()
	app.Name = "resyncd"
	app.Usage = "REST/SSE interface for resource synchronization tasks"
	app.Action = run
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to the configuration file",
			EnvVars: []string{"RESYNCD_CONFIG"},
			Value:   appconf.DefaultConfigFile,
		},
		&cli.StringFlag{
			Name:    "env-file",
			Usage:   "path to an optional file with environment variables",
			EnvVars: []string{"RESYNCD_ENV_FILE"},
			Value:   ".env",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "print debug information",
			EnvVars: []string{"RESYNCD_DEBUG", "DEBUG"},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func run(c *cli.Context) error {
	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := godotenv.Load(c.String("env-file")); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		log.Debugf("Environment file not loaded: %s", err)
	}

	appConf, err := appconf.NewConfig(c.String("config"))
	if err != nil {
		return err
	}

	shutdownMetrics, err := metrics.Setup(&appConf.Metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Errorf("Unable to flush metrics: %s", err)
		}
	}()

	recorder, err := metrics.NewRecorder()
	if err != nil {
		return err
	}

	// Registry of task records and their subscribers
	tasks := task.NewManager(appConf.Tasks.MaxRecords)

	exec := executor.New(tasks, runner.NewShellRunner(appConf.Tasks.Shell), appConf, recorder)

	srv, err := httpserver.NewServer(&appConf.Server, tasks, exec)
	if err != nil {
		return err
	}

	// This global cancel context is used by the graceful shutdown function
	cancelCtx, cancel := context.WithCancel(context.Background())

	// Signal handler
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigc)

		s := <-sigc

		log.WithField("signal", s).Info("Graceful shutdown initiated ...")

		daemon.SdNotify(false, daemon.SdNotifyStopping)

		// New submissions are rejected from now on
		exec.Close()

		for {
			n := exec.Running()

			if n == 0 {
				exec.Wait()
				cancel()
				break
			}

			log.Warnf("Wait until all tasks finish (currently running: %d). Next attempt in 5 seconds", n)

			time.Sleep(5 * time.Second)
		}
	}()

	l, err := net.Listen("tcp", appConf.Server.Listen)
	if err != nil {
		return err
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); !ok && err != nil {
		log.Errorf("Unable to send systemd notify: %s", err)
	}

	return srv.Serve(cancelCtx, l)
}
