/*
Localizer tracks a robot on a rectangular grid from noisy position readings. The robot moves
under a fixed stochastic policy; each tick the sensor reports its cell, a neighbouring cell or
nothing, and a forward filter over every (row, col, heading) state folds the reading into the
belief. The estimate is the most likely cell. The run can be watched live in a browser and
leaves an html/png report behind.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"localizer/charts"
	"localizer/localizer"
	"localizer/models"
	"localizer/server"

	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = flag.String("config", "", "path to a run config yaml; defaults are used when empty")
	ticks      = flag.Int("ticks", -1, "number of ticks to run, overriding the config; 0 runs until interrupted")
	seed       = flag.Uint64("seed", 0, "generator seed, overriding the config")
	host       = flag.String("host", "", "The host ip")
	port       = flag.String("port", "8080", "The host port")
	serve      = flag.Bool("serve", false, "serve the live view while running")
	report     = flag.Bool("report", true, "write the html/png report when the run ends")
	dbg        = flag.Bool("debug", false, "print the belief grid every tick")
)

// summaryEvery is the tick period of the progress log line when not debugging.
const summaryEvery = 50

func main() {
	flag.Parse()
	if err := runApp(); err != nil {
		log.Fatal(err)
	}
}

func runApp() (err error) {
	var cfg *localizer.RunConfig
	if cfg, err = loadConfig(*configPath); err != nil {
		return
	}
	applyFlags(cfg)

	interval, err := cfg.Interval()
	if err != nil {
		return fmt.Errorf("tick interval: %w", err)
	}

	appCtx, appCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer appCancel()

	runCtx, runCancel, err := cfg.WithRunDeadline(appCtx)
	if err != nil {
		return fmt.Errorf("run deadline: %w", err)
	}
	defer runCancel()

	loc, err := localizer.Initialize(cfg.LocalizerConfig())
	if err != nil {
		return
	}
	log.Printf("localizing on %dx%d grid, seed %d", cfg.Grid.Rows, cfg.Grid.Cols, loc.Seed())

	group, groupCtx := errgroup.WithContext(runCtx)
	frames := make(chan localizer.Frame, 1)

	if *serve {
		var srv *server.Server
		addr := *host + ":" + *port
		if srv, err = server.NewServer(groupCtx, addr, loc.Frame(), frames, loc.Report()); err != nil {
			return
		}
		group.Go(func() error {
			return srv.Serve(groupCtx)
		})
	}

	group.Go(func() error {
		defer close(frames)
		runErr := runTicks(groupCtx, loc, cfg.Ticks, interval, frames, *dbg, os.Stdout)
		logSummary(loc.Report())
		if *report && cfg.Report.Dir != "" {
			if paths, reportErr := charts.WriteReport(cfg.Report.Dir, loc); reportErr != nil {
				log.Println("report:", reportErr)
			} else {
				log.Println("report written to", paths)
			}
		}
		if *serve && runErr == nil {
			log.Println("run finished, serving until interrupted")
		}
		return runErr
	})

	return group.Wait()
}

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(path string) (*localizer.RunConfig, error) {
	if path == "" {
		return localizer.DefaultRunConfig(), nil
	}
	return localizer.FromYaml(path)
}

// applyFlags lets explicitly set flags override the config.
func applyFlags(cfg *localizer.RunConfig) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ticks":
			cfg.Ticks = *ticks
		case "seed":
			s := *seed
			cfg.Seed = &s
		}
	})
}

// runTicks ticks loc until maxTicks have run (0 is unbounded) or ctx is done, paced by
// interval when it is non-zero. Each tick's frame is offered to frames without blocking.
func runTicks(
	ctx context.Context,
	loc *localizer.Localizer,
	maxTicks int,
	interval time.Duration,
	frames chan<- localizer.Frame,
	debug bool,
	out io.Writer,
) error {
	// wait reports whether the next tick should run.
	wait := func() bool {
		return ctx.Err() == nil
	}
	if interval > 0 {
		pacer := channerics.NewTicker(ctx.Done(), interval)
		wait = func() bool {
			select {
			case <-ctx.Done():
			case <-pacer:
			}
			return ctx.Err() == nil
		}
	}

	for maxTicks == 0 || loc.Report().Iterations() < maxTicks {
		if !wait() {
			return nil
		}

		result, err := loc.Tick()
		if err != nil {
			return err
		}
		logTick(result, loc, debug, out)

		if frames != nil {
			select {
			case frames <- loc.Frame():
			default:
			}
		}
	}
	return nil
}

func logTick(result localizer.TickResult, loc *localizer.Localizer, debug bool, out io.Writer) {
	if debug {
		fmt.Fprintf(out, "tick %d: truth (%d,%d) %v, reading %v, predicted (%d,%d) p=%.3f\n",
			result.Iteration,
			result.TrueState.Row, result.TrueState.Col, result.TrueState.Heading,
			result.Reading,
			result.Predicted.Row, result.Predicted.Col, result.Predicted.Confidence)
		models.ShowBelief(out, loc.Marginals(), result.TrueState, result.Predicted.Row, result.Predicted.Col)
		models.ShowGrid(out, loc.Grid(), result.TrueState)
		return
	}
	if result.Iteration%summaryEvery == 0 {
		rp := loc.Report()
		log.Printf("tick %d: accuracy %.3f, mean manhattan %.2f", result.Iteration, rp.Accuracy(), rp.MeanManhattan())
	}
}

func logSummary(rp *localizer.Report) {
	if rp.Iterations() == 0 {
		log.Println("no ticks run")
		return
	}
	log.Printf("%d ticks: %d correct, accuracy %.3f, mean euclidean %.2f, mean manhattan %.2f",
		rp.Iterations(), rp.NumCorrect(), rp.Accuracy(), rp.MeanEuclidean(), rp.MeanManhattan())
}
