package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sync"

	"github.com/Charnelx/thread-local/local"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "threadlocal",
		Usage:   "Demonstrates goroutine-local storage",
		Suggest: true,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (DEBUG, INFO, WARN, ERROR)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format (text, json)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, local.Setup(&local.Config{
				LogLevel:  cmd.String("log-level"),
				LogFormat: cmd.String("log-format"),
				Debug:     cmd.Bool("debug"),
			})
		},

		Commands: []*cli.Command{
			{
				Name:  "scenario",
				Usage: "Run workers that each write and read back their own values",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"n"},
						Value:   10,
						Usage:   "Number of worker goroutines",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return scenarioCommand(cmd.Root().Writer, cmd.Int("workers"))
				},
			},
			{
				Name:  "isolation",
				Usage: "Show that a value written on one goroutine is absent on another",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return isolationCommand(cmd.Root().Writer)
				},
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					_, err := fmt.Fprintf(cmd.Root().Writer, "threadlocal version %s\n", version)
					return err
				},
			},
		},
	}
}

type workerResult struct {
	value   any
	squared any
	err     error
}

func scenarioCommand(w io.Writer, workers int) error {
	if workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", workers)
	}

	reg := local.NewRegistry()
	data, err := local.NewHandle(reg, local.WithName("scenario"))
	if err != nil {
		return err
	}

	results := make([]workerResult, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i].err = data.Scope(func() error {
				if err := data.Set("value", i); err != nil {
					return err
				}
				if err := data.Set("squared", i*i); err != nil {
					return err
				}
				runtime.Gosched()

				var err error
				if results[i].value, err = data.Get("value"); err != nil {
					return err
				}
				results[i].squared, err = data.Get("squared")
				return err
			})
		}()
	}
	wg.Wait()

	for i, res := range results {
		if res.err != nil {
			return fmt.Errorf("worker %d: %w", i, res.err)
		}
		if res.value != i || res.squared != i*i {
			return fmt.Errorf("worker %d saw value=%v squared=%v", i, res.value, res.squared)
		}
		fmt.Fprintf(w, "worker %d: value=%v squared=%v\n", i, res.value, res.squared)
	}
	fmt.Fprintf(w, "bags left: %d\n", reg.Len())
	return nil
}

func isolationCommand(w io.Writer) error {
	reg := local.NewRegistry()
	data, err := local.NewHandle(reg, local.WithName("isolation"))
	if err != nil {
		return err
	}

	written := make(chan struct{})
	read := make(chan struct{})
	errs := make(chan error, 2)

	go func() {
		defer func() { _ = data.Release() }()
		if err := data.Set("x", "A"); err != nil {
			errs <- err
			close(written)
			return
		}
		close(written)
		<-read
		v, err := data.Get("x")
		fmt.Fprintf(w, "A reads x=%v\n", v)
		errs <- err
	}()

	go func() {
		defer func() { _ = data.Release() }()
		defer close(read)
		<-written
		v, err := data.Get("x")
		if err != nil {
			errs <- err
			return
		}
		fmt.Fprintf(w, "B reads x=%v\n", v)
		errs <- data.Set("x", "B")
	}()

	for range 2 {
		if err := <-errs; err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
