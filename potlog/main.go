package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/itohio/potlog/pkg/config"
	"github.com/itohio/potlog/pkg/datalog"
	"github.com/itohio/potlog/pkg/instrument"
	"github.com/itohio/potlog/pkg/logging"
	"github.com/itohio/potlog/pkg/sequence"
)

func main() {
	app := &cli.App{
		Name:  "potlog",
		Usage: "log potentiometer readings from a serial sensor kit to CSV",
		UsageText: "potlog [--config FILE] [--port PORT] [--mock] [command]" +
			"\n\nEXAMPLE:" +
			"\n\ttake 20 samples from the sensor kit on /dev/ttyACM0" +
			"\n\t\tpotlog --port /dev/ttyACM0 --samples 20",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config.yaml", Usage: "load configuration from `FILE`"},
			&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "serial port override (e.g., COM3 or /dev/ttyACM0)"},
			&cli.BoolFlag{Name: "mock", Usage: "use a simulated instrument instead of the serial port"},
			&cli.IntFlag{Name: "samples", Aliases: []string{"n"}, Value: -1, Usage: "number of samples to take (overrides config)"},
			&cli.StringFlag{Name: "log-level", Usage: "diagnostic `LEVEL` (debug|info|warn|error, overrides config)"},
		},
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run one measurement sequence (default)",
				Action: runAction,
			},
			{
				Name:   "ports",
				Usage:  "list serial ports",
				Action: portsAction,
			},
			{
				Name:   "show",
				Usage:  "print the sample log",
				Action: showAction,
			},
			{
				Name:   "init-config",
				Usage:  "write the default configuration to the config file",
				Action: initConfigAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration file and applies command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if port := c.String("port"); port != "" {
		cfg.Serial.Port = port
	}
	if n := c.Int("samples"); n >= 0 {
		cfg.Sampling.Samples = n
	}
	if level := c.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts := []instrument.Option{instrument.WithLogger(logger)}
	if c.Bool("mock") {
		opts = append(opts, instrument.WithOpener(instrument.MockOpener(&cfg.Mock, nil)))
		fmt.Println("Using simulated instrument")
	} else {
		fmt.Printf("Using serial port %s at %d baud\n", cfg.Serial.Port, cfg.Serial.BaudRate)
	}
	session := instrument.New(cfg.Serial, opts...)

	runner := sequence.New(cfg, session, datalog.New(cfg.Output.Path), sequence.NewConsole(os.Stdout),
		sequence.WithLogger(logger))
	summary, err := runner.Run()
	if err != nil {
		// Already reported on the console.
		return cli.Exit("", 1)
	}

	logger.Info("run finished",
		zap.Int("attempted", summary.Attempted),
		zap.Int("recorded", summary.Recorded),
		zap.Int("failed", summary.Failed))
	return nil
}

func portsAction(c *cli.Context) error {
	ports, err := instrument.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p.Description())
	}
	return nil
}

func showAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	records, err := datalog.New(cfg.Output.Path).ReadAll()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", datalog.Header[0], datalog.Header[1]})
	for i, rec := range records {
		t.AppendRow(table.Row{i + 1, rec.Timestamp.UTC().Format(datalog.TimestampLayout), rec.Value})
	}
	t.AppendFooter(table.Row{"", "samples", len(records)})
	t.Render()
	return nil
}

func initConfigAction(c *cli.Context) error {
	path := c.String("config")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}
