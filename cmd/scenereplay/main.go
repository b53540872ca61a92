// Command scenereplay replays a recorded JSON-lines telemetry log through
// the dashboard pipeline and prints each redraw. With --push it sends the
// log to a running dashboard's TelemetryIngest service instead.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/xiaonanln/dtnview/dashboard"
	"github.com/xiaonanln/dtnview/dashserver"
	"github.com/xiaonanln/dtnview/util/logger"
)

// CLI is the command line of scenereplay.
type CLI struct {
	Log            string        `arg:"" type:"existingfile" help:"JSON-lines telemetry log, one message per line."`
	Push           string        `placeholder:"HOST:PORT" help:"Push the log to a dashboard's gRPC ingest address instead of replaying it locally."`
	Delay          time.Duration `default:"0s" help:"Pause between messages."`
	Declutter      bool          `help:"Hide wires whose link is down."`
	DeclutterNodes bool          `help:"Also hide outducts whose link is down."`
	Shrink         bool          `help:"Drop empty nodes and panels."`
	Decimals       int           `default:"2" help:"Decimal places of rate labels."`
	Scenes         bool          `help:"Print the full scene of every redraw as JSON."`
	NoColor        bool          `help:"Disable colored output."`
	LogLevel       string        `default:"warn" enum:"debug,info,warn,error" help:"Log level of the pipeline (${enum})."`
}

// Run replays the log and writes the report to out.
func (c *CLI) Run(ctx context.Context, out io.Writer) error {
	if c.NoColor {
		color.NoColor = true
	}
	if c.Decimals < 0 || c.Decimals > 6 {
		return fmt.Errorf("--decimals must be between 0 and 6, got %d", c.Decimals)
	}
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logger.SetGlobalLevel(level)

	f, err := os.Open(c.Log)
	if err != nil {
		return fmt.Errorf("failed to open telemetry log: %w", err)
	}
	defer f.Close()

	var applier Applier
	if c.Push != "" {
		conn, err := grpc.NewClient(c.Push, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", c.Push, err)
		}
		defer conn.Close()
		applier = pushApplier{client: dashserver.NewIngestClient(conn)}
	} else {
		opts := dashboard.DefaultOptions()
		opts.Display.Declutter = c.Declutter
		opts.Display.DeclutterNodes = c.DeclutterNodes
		opts.Display.Shrink = c.Shrink
		opts.Display.Decimals = c.Decimals
		applier = localApplier{dash: dashboard.New(opts)}
	}

	p := &Replayer{applier: applier, out: out, delay: c.Delay, scenes: c.Scenes}
	stats, err := p.Run(ctx, f)
	PrintStats(out, stats)
	return err
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("scenereplay"),
		kong.Description("Replay a recorded relay telemetry log through the dashboard pipeline."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kctx.FatalIfErrorf(cli.Run(ctx, color.Output))
}
