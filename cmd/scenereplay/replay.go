package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/xiaonanln/dtnview/dashboard"
	"github.com/xiaonanln/dtnview/dashserver"
	"github.com/xiaonanln/dtnview/scene"
	dtnerrors "github.com/xiaonanln/dtnview/util/errors"
)

const maxLineSize = 4 << 20

var (
	redrawColor = color.New(color.FgHiGreen, color.Bold)
	labelColor  = color.New(color.FgCyan)
	enterColor  = color.New(color.FgGreen)
	exitColor   = color.New(color.FgRed)
	warnColor   = color.New(color.FgYellow)
	subtleColor = color.New(color.FgHiBlack)
)

// Applier feeds one telemetry message to a pipeline. The returned update is
// nil when the pipeline is remote.
type Applier interface {
	Apply(ctx context.Context, msg []byte) (*dashboard.Update, error)
}

type localApplier struct {
	dash *dashboard.Dashboard
}

func (a localApplier) Apply(_ context.Context, msg []byte) (*dashboard.Update, error) {
	u, err := a.dash.ApplyJSON(msg)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type pushApplier struct {
	client *dashserver.IngestClient
}

func (a pushApplier) Apply(ctx context.Context, msg []byte) (*dashboard.Update, error) {
	return nil, a.client.PushJSON(ctx, msg)
}

// Stats summarizes a replay.
type Stats struct {
	Messages int
	Redraws  int
	Relabels int
	Rejected int
	Skipped  int
}

// Replayer reads a JSON-lines telemetry log and prints what each message
// did to the scene.
type Replayer struct {
	applier Applier
	out     io.Writer
	delay   time.Duration
	scenes  bool
}

// rejected reports whether err turns down a single message rather than
// the whole replay.
func rejected(err error) bool {
	if errors.Is(err, dashboard.ErrMalformedRecord) || errors.Is(err, dashboard.ErrNotConfigured) {
		return true
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition:
		return true
	}
	return false
}

// Run replays r until EOF or ctx is done. Blank lines, comments and
// anything that is not a JSON object, such as the feed greeting, are skipped.
func (p *Replayer) Run(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if line[0] != '{' {
			stats.Skipped++
			subtleColor.Fprintf(p.out, "%5d  skipped %q\n", lineNo, truncate(string(line), 40))
			continue
		}

		stats.Messages++
		u, err := p.applier.Apply(ctx, line)
		if err != nil {
			if !rejected(err) {
				return stats, fmt.Errorf("line %d: %w", lineNo, dtnerrors.WrapTimeout("apply", "", err))
			}
			stats.Rejected++
			warnColor.Fprintf(p.out, "%5d  rejected: %v\n", lineNo, err)
			continue
		}
		if u != nil && u.Scene != nil {
			if u.Redrawn {
				stats.Redraws++
			} else {
				stats.Relabels++
			}
			if err := p.print(lineNo, u); err != nil {
				return stats, err
			}
		}

		if p.delay > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(p.delay):
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read telemetry log: %w", err)
	}
	return stats, nil
}

func (p *Replayer) print(lineNo int, u *dashboard.Update) error {
	sc := u.Scene
	if !u.Redrawn {
		labelColor.Fprintf(p.out, "%5d  gen %d labels", lineNo, sc.Generation)
		fmt.Fprintf(p.out, "  %s\n", summaryLine(sc))
		return nil
	}

	redrawColor.Fprintf(p.out, "%5d  gen %d redraw", lineNo, sc.Generation)
	fmt.Fprintf(p.out, "  %d nodes, %d wires\n", nodeCount(sc), len(sc.Wires))
	printKeys(p.out, "nodes", sc.Changes.Nodes.Entering, sc.Changes.Nodes.Exiting)
	printKeys(p.out, "wires", sc.Changes.Wires.Entering, sc.Changes.Wires.Exiting)

	if p.scenes {
		data, err := json.MarshalIndent(sc, "       ", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode scene: %w", err)
		}
		fmt.Fprintf(p.out, "       %s\n", data)
	}
	return nil
}

func printKeys(w io.Writer, what string, entering, exiting []string) {
	if len(entering) > 0 {
		fmt.Fprintf(w, "       %s %s %s\n", enterColor.Sprint("+"), what, strings.Join(entering, ", "))
	}
	if len(exiting) > 0 {
		fmt.Fprintf(w, "       %s %s %s\n", exitColor.Sprint("-"), what, strings.Join(exiting, ", "))
	}
}

func nodeCount(sc *scene.Scene) int {
	n := 0
	for _, views := range [][]scene.NodeView{sc.Ingress, sc.Egress, sc.Storage, sc.NextHops, sc.FinalDestinations, sc.ActiveConnections} {
		n += scene.CountNodes(views)
	}
	return n
}

func summaryLine(sc *scene.Scene) string {
	var parts []string
	for _, key := range []string{scene.RateIngressToEgress, scene.RateIngressToStorage, scene.RateStorageToEgress} {
		if r, ok := sc.Summary.Rates[key]; ok && r.Ready {
			parts = append(parts, key+"="+r.Label)
		}
	}
	return strings.Join(parts, "  ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// PrintStats writes the closing summary of a replay.
func PrintStats(w io.Writer, stats Stats) {
	fmt.Fprintf(w, "%d messages: %s, %s, %s",
		stats.Messages,
		redrawColor.Sprintf("%d redraws", stats.Redraws),
		labelColor.Sprintf("%d label updates", stats.Relabels),
		warnColor.Sprintf("%d rejected", stats.Rejected))
	if stats.Skipped > 0 {
		fmt.Fprintf(w, ", %d skipped", stats.Skipped)
	}
	fmt.Fprintln(w)
}
