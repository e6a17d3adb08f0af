// Command sh2ctl is a small interactive-ish client for a sensor hub session:
// query the product id and oscillator type, read/write sensor config, and
// force a flush, against the bundled simulated hub. It has no FRS
// subcommand and no hardware-backed hal.Interface.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sh2labs/sh2drv/internal/simhub"
	"github.com/sh2labs/sh2drv/sh2"
	"github.com/sh2labs/sh2drv/shtp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var (
	green  = color.New(color.FgHiGreen).SprintFunc()
	red    = color.New(color.FgHiRed).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
)

// dial brings up a Session. Only the bundled simulated hub is wired today;
// a real serial/I2C backend belongs behind the same hal.Interface.
func dial(c *cli.Context) (*sh2.Session, error) {
	log := logrus.New()
	if !c.GlobalBool("verbose") {
		log.SetLevel(logrus.WarnLevel)
	}

	hub := simhub.New(log)
	tr, err := shtp.New(hub, log)
	if err != nil {
		return nil, fmt.Errorf("open transport: %w", err)
	}
	s := sh2.New(tr, hub, log)
	if err := s.Initialize(func(ev sh2.Event) {
		fmt.Println(yellow(fmt.Sprintf("event: id=%d frsType=%#x", ev.ID, ev.FrsType)))
	}); err != nil {
		return nil, fmt.Errorf("initialize session: %w", err)
	}
	return s, nil
}

func prodIDCommand(c *cli.Context) error {
	s, err := dial(c)
	if err != nil {
		return err
	}
	ids, err := s.GetProdIds(sh2.MaxProdIds)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(cyan(fmt.Sprintf(
			"resetCause=%d swVer=%d.%d.%d part=%#08x build=%d",
			id.ResetCause, id.SwVerMajor, id.SwVerMinor, id.SwVerPatch,
			id.SwPartNumber, id.SwBuildNumber)))
	}
	return nil
}

func sensorIDFromFlag(c *cli.Context) (sh2.SensorID, error) {
	id := c.Int("sensor")
	if id <= 0 || id > 0xff {
		return 0, fmt.Errorf("--sensor is required and must fit a byte")
	}
	return sh2.SensorID(id), nil
}

func getConfigCommand(c *cli.Context) error {
	s, err := dial(c)
	if err != nil {
		return err
	}
	sensorID, err := sensorIDFromFlag(c)
	if err != nil {
		return err
	}
	cfg, err := s.GetSensorConfig(sensorID)
	if err != nil {
		return err
	}
	fmt.Printf("%+v\n", cfg)
	return nil
}

func setConfigCommand(c *cli.Context) error {
	s, err := dial(c)
	if err != nil {
		return err
	}
	sensorID, err := sensorIDFromFlag(c)
	if err != nil {
		return err
	}
	cfg := sh2.SensorConfig{
		ReportIntervalUS: uint32(c.Int("interval-us")),
		WakeupEnabled:    c.Bool("wake"),
	}
	if err := s.SetSensorConfig(sensorID, cfg); err != nil {
		return err
	}
	fmt.Println(green("ok"))
	return nil
}

func flushCommand(c *cli.Context) error {
	s, err := dial(c)
	if err != nil {
		return err
	}
	sensorID, err := sensorIDFromFlag(c)
	if err != nil {
		return err
	}
	if err := s.Flush(sensorID); err != nil {
		return err
	}
	fmt.Println(green("flushed"))
	return nil
}

func oscTypeCommand(c *cli.Context) error {
	s, err := dial(c)
	if err != nil {
		return err
	}
	t, err := s.GetOscType()
	if err != nil {
		return err
	}
	fmt.Println(cyan(fmt.Sprintf("oscType=%d", t)))
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "sh2ctl"
	app.Usage = "drive a sensor hub session over SHTP/SH2"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "verbose, v"},
	}
	app.Commands = []cli.Command{
		{
			Name:   "prodid",
			Usage:  "query the hub's product id",
			Action: prodIDCommand,
		},
		{
			Name:  "get-config",
			Usage: "read a sensor's feature configuration",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "sensor"},
			},
			Action: getConfigCommand,
		},
		{
			Name:  "set-config",
			Usage: "enable a sensor with the given report interval",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "sensor"},
				cli.IntFlag{Name: "interval-us"},
				cli.BoolFlag{Name: "wake"},
			},
			Action: setConfigCommand,
		},
		{
			Name:  "flush",
			Usage: "force a sensor's batch FIFO to deliver",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "sensor"},
			},
			Action: flushCommand,
		},
		{
			Name:   "osc-type",
			Usage:  "query the hub's oscillator type",
			Action: oscTypeCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		os.Exit(1)
	}
}
