package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/covidash"
	"github.com/aretw0/covidash/internal/config"
	"github.com/aretw0/covidash/internal/presentation/graph"
	"github.com/aretw0/covidash/internal/presentation/tui"
	"github.com/aretw0/covidash/pkg/domain"
	"github.com/aretw0/covidash/pkg/ports"
	"github.com/aretw0/covidash/pkg/reactive"
)

// DefaultSessionID names the session of `covidash run` when none is given.
const DefaultSessionID = "local"

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	Config    config.Config
	SessionID string
	Watch     bool
	Debug     bool
	Fresh     bool
	JSON      bool
	Quiet     bool // no banner
	In        io.Reader
	Out       io.Writer
}

// RunSession runs the interactive dashboard until quit, EOF or a signal.
// The selection is saved after every change, so the next run with the same
// session ID resumes where this one stopped.
func RunSession(opts RunOptions) error {
	logger, err := NewLogger(opts.Config.Log, opts.Debug)
	if err != nil {
		return err
	}
	if opts.SessionID == "" {
		opts.SessionID = DefaultSessionID
	}

	out := &syncWriter{w: opts.Out}
	if !opts.Quiet {
		tui.PrintBanner(opts.Out)
	}
	terminal := tui.NewTerminal(opts.Out, tui.WithWriter(out))

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	stack, err := Build(sigCtx, opts.Config, logger,
		covidash.WithRenderers(func(string) ports.Renderers { return ports.All(terminal) }),
	)
	if err != nil {
		return err
	}
	defer stack.Close()
	eng := stack.Engine

	if opts.Fresh {
		if err := reset(sigCtx, stack, opts.SessionID); err != nil {
			return err
		}
	}

	printSystemMessage(out, "Loading data for session '%s'...", opts.SessionID)
	if _, err := eng.Start(sigCtx, opts.SessionID); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	if sel, err := eng.Selection(sigCtx, opts.SessionID); err == nil {
		printSystemMessage(out, "Session '%s' active: %s.", opts.SessionID, describe(sel))
	}

	if opts.Watch {
		startWatcher(sigCtx, eng, out, logger)
	}

	lines := readLines(sigCtx, opts.In)
	fmt.Fprint(out, "> ")
	for {
		select {
		case <-sigCtx.Done():
			logCompletion(out, opts.SessionID, sigCtx.Signal())
			return nil
		case line, ok := <-lines:
			if !ok {
				logCompletion(out, opts.SessionID, nil)
				return nil
			}
			quit, err := execute(sigCtx, eng, terminal, out, opts.SessionID, line)
			if err != nil {
				if isInterrupted(err) {
					continue
				}
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				logCompletion(out, opts.SessionID, nil)
				return nil
			}
			fmt.Fprint(out, "> ")
		}
	}
}

// readLines pumps in into a channel, closed on EOF.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func execute(ctx context.Context, eng *covidash.Engine, terminal *tui.Terminal, out io.Writer, id, line string) (bool, error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		return false, err
	}

	switch cmd.Action {
	case ActionQuit:
		return true, nil
	case ActionHelp:
		fmt.Fprintln(out, helpText)
	case ActionApply:
		diff, err := eng.Apply(ctx, id, cmd.Patch)
		if diff != nil && diff.IsEmpty() && err == nil {
			printSystemMessage(out, "Nothing changed.")
		}
		if err != nil && errors.Is(err, reactive.ErrEvaluation) {
			return false, fmt.Errorf("inputs saved but the dashboard could not be drawn: %w", err)
		}
		return false, err
	case ActionShow:
		v, err := eng.View(ctx, id)
		if err != nil {
			return false, err
		}
		return false, errors.Join(
			terminal.RenderMap(v.Map),
			terminal.RenderTable(v.Table),
			terminal.RenderChart(v.Trend),
		)
	case ActionStates:
		c, err := eng.Choices(ctx, id)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(out, strings.Join(c.States, ", "))
		printSystemMessage(out, "Data covers %s.", c.Extent)
	case ActionGraph:
		nodes, err := eng.Inspect(ctx, id)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(out, graph.GenerateMermaid(nodes, &graph.GraphOverlay{Dirty: true, Epochs: true}))
	case ActionRefresh:
		if err := eng.Refresh(ctx, id); err != nil {
			return false, err
		}
		printSystemMessage(out, "Data refreshed.")
	}
	return false, nil
}

func reset(ctx context.Context, stack *Stack, sessionID string) error {
	if err := stack.Store.Delete(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	return nil
}

func describe(sel domain.Selection) string {
	adjust := "off"
	if sel.PopulationAdjust {
		adjust = "on"
	}
	return fmt.Sprintf("%s, %s, adjust %s, state %s", sel.Metric, sel.Range, adjust, sel.State)
}
