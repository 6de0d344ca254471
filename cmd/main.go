package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/royalcat/cjstream/collector"
	"github.com/royalcat/cjstream/filter"
	"github.com/royalcat/cjstream/internal/stats"
	"github.com/royalcat/cjstream/objconv"
	"github.com/royalcat/cjstream/splitter"

	_ "net/http/pprof"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/urfave/cli/v3"
	_ "go.uber.org/automaxprocs"
)

func main() {
	app := &cli.App{
		Name:        "cjstream",
		Description: "CityJSON <-> CityJSONSeq toolkit: split, merge, filter and serve city models",
		Commands: []*cli.Command{
			{
				Name:  "cat",
				Usage: "split a CityJSON file into a CityJSONSeq stream",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "order",
						Aliases: []string{"o"},
						Value:   string(splitter.OrderRandom),
						Usage:   "feature order: random or alphabetical",
					},
					&cli.IntFlag{
						Name:        "threads",
						Aliases:     []string{"t"},
						DefaultText: "max",
					},
				}, ioFlags()...),
				Action: catAction,
			},
			{
				Name:  "collect",
				Usage: "merge a CityJSONSeq stream back into one CityJSON file",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "source-transform",
						Usage: "requantize features from this transform: sx,sy,sz,tx,ty,tz",
					},
				}, ioFlags()...),
				Action: collectAction,
			},
			{
				Name:  "filter",
				Usage: "keep or drop features of a CityJSONSeq stream",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "bbox",
						Usage: "keep features strictly inside: minx,miny,maxx,maxy",
					},
					&cli.StringFlag{
						Name:  "radius",
						Usage: "keep features within a circle: x,y,r",
					},
					&cli.StringFlag{
						Name:  "cotype",
						Usage: "keep features of this city object type",
					},
					&cli.IntFlag{
						Name:  "random",
						Usage: "keep each feature with probability 1/N",
					},
					&cli.BoolFlag{
						Name:  "exclude",
						Usage: "invert the selection",
					},
				}, ioFlags()...),
				Action: filterAction,
			},
			{
				Name:   "obj",
				Usage:  "render a CityJSON file as a Wavefront OBJ mesh",
				Flags:  ioFlags(),
				Action: objAction,
			},
			{
				Name:  "serve",
				Usage: "serve a CityJSON file as a CityJSONSeq feature api",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:      "input",
						Aliases:   []string{"i"},
						Required:  true,
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
					},
					&cli.StringFlag{
						Name:  "telemetry.endpoint",
						Usage: "otlp http endpoint",
					},
					&cli.IntFlag{
						Name:        "threads",
						Aliases:     []string{"t"},
						DefaultText: "max",
					},
				},
				Action: serveAction,
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "pprof.listen",
				DefaultText: "",
			},
			&cli.BoolFlag{
				Name: "pprof.profile",
			},
			&cli.BoolFlag{
				Name: "stats",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func ioFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:      "input",
			Aliases:   []string{"i"},
			Usage:     "input file, - for stdin (.zst compression detected by extension)",
			Value:     "-",
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:      "output",
			Aliases:   []string{"out"},
			Usage:     "output file, - for stdout",
			Value:     "-",
			TakesFile: true,
		},
	}
}

// setup handles the profiling and stats flags shared by every command. The
// returned func flushes whatever was started.
func setup(ctx *cli.Context) (func(), error) {
	log := slog.Default()

	if pprofListen := ctx.String("pprof.listen"); pprofListen != "" {
		go func() {
			log.Info("Starting pprof server", "listen", pprofListen)
			if err := http.ListenAndServe(pprofListen, nil); err != nil {
				log.Error("Error starting pprof server", "error", err)
			}
		}()
	}

	stop := func() {}
	if ctx.Bool("pprof.profile") {
		f, err := os.OpenFile("profile.cpu.pprof", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, fmt.Errorf("error creating pprof file: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return nil, fmt.Errorf("error starting pprof: %w", err)
		}
		stop = pprof.StopCPUProfile
	}

	if ctx.Bool("stats") {
		col, err := stats.NewCollector(time.Second)
		if err != nil {
			return nil, err
		}
		col.Start()
		prevStop := stop
		stop = func() {
			prevStop()
			report := col.Stop()
			if err := report.SaveToFile("cjstream.stats.txt"); err != nil {
				log.Error("failed to save stats report", "error", err)
			}
		}
	}

	return stop, nil
}

func threadCount(ctx *cli.Context) int {
	threads := ctx.Int("threads")
	if threads == 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	return threads
}

func catAction(ctx *cli.Context) error {
	stop, err := setup(ctx)
	if err != nil {
		return err
	}
	defer stop()

	order, err := splitter.ParseOrder(ctx.String("order"))
	if err != nil {
		return err
	}

	doc, err := readDocument(ctx.String("input"))
	if err != nil {
		return err
	}

	s, err := splitter.New(doc, splitter.WithOrder(order))
	if err != nil {
		return err
	}

	out, closeOut, err := openWriter(ctx.String("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	return s.WriteSeq(ctx.Context, out, threadCount(ctx))
}

func collectAction(ctx *cli.Context) error {
	stop, err := setup(ctx)
	if err != nil {
		return err
	}
	defer stop()

	var opts []collector.Option
	if st := ctx.String("source-transform"); st != "" {
		vals, err := parseFloats(st, 6)
		if err != nil {
			return fmt.Errorf("invalid source-transform: %w", err)
		}
		opts = append(opts, collector.WithSourceTransform(cityjsonTransform(vals)))
	}

	in, closeIn, err := openReader(ctx.String("input"))
	if err != nil {
		return err
	}
	defer closeIn()

	doc, err := collector.Collect(ctx.Context, in, opts...)
	if err != nil {
		return err
	}

	out, closeOut, err := openWriter(ctx.String("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	return writeDocument(out, doc)
}

func filterAction(ctx *cli.Context) error {
	stop, err := setup(ctx)
	if err != nil {
		return err
	}
	defer stop()

	var build filter.Builder
	switch {
	case ctx.String("bbox") != "":
		vals, err := parseFloats(ctx.String("bbox"), 4)
		if err != nil {
			return fmt.Errorf("invalid bbox: %w", err)
		}
		build = filter.BBox(orb.Bound{
			Min: orb.Point{vals[0], vals[1]},
			Max: orb.Point{vals[2], vals[3]},
		})
	case ctx.String("radius") != "":
		vals, err := parseFloats(ctx.String("radius"), 3)
		if err != nil {
			return fmt.Errorf("invalid radius: %w", err)
		}
		build = filter.Radius(orb.Point{vals[0], vals[1]}, vals[2])
	case ctx.String("cotype") != "":
		build = filter.ObjectType(ctx.String("cotype"))
	case ctx.Int("random") != 0:
		build = filter.Random(ctx.Int("random"))
	default:
		return fmt.Errorf("one of --bbox, --radius, --cotype or --random is required")
	}

	if ctx.Bool("exclude") {
		build = filter.Exclude(build)
	}

	in, closeIn, err := openReader(ctx.String("input"))
	if err != nil {
		return err
	}
	defer closeIn()

	out, closeOut, err := openWriter(ctx.String("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	return filter.Run(ctx.Context, in, out, build, slog.Default())
}

func objAction(ctx *cli.Context) error {
	stop, err := setup(ctx)
	if err != nil {
		return err
	}
	defer stop()

	// accepts both a whole document and a CityJSONSeq stream, which gets
	// collected first
	doc, err := readDocumentOrSeq(ctx.Context, ctx.String("input"))
	if err != nil {
		return err
	}

	out, closeOut, err := openWriter(ctx.String("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	return objconv.WriteOBJ(doc, out)
}

// parseFloats splits a comma-separated list into exactly n floats.
func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated values, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
