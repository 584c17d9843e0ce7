package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/covidash/internal/config"
	"github.com/aretw0/covidash/pkg/domain"
	"github.com/aretw0/covidash/pkg/reactive"
)

// jsonReply is one line of JSON mode output.
type jsonReply struct {
	Diff  *domain.SelectionDiff `json:"diff,omitempty"`
	View  *domain.View          `json:"view,omitempty"`
	Error string                `json:"error,omitempty"`
}

// RunJSON runs a session over JSON Lines: every input line is a patch
// object (e.g. {"metric":"deaths"}), every output line the diff and the new
// view, or an error. The first output line is the initial view.
func RunJSON(opts RunOptions) error {
	logger, err := NewLogger(opts.Config.Log, opts.Debug)
	if err != nil {
		return err
	}
	if opts.SessionID == "" {
		opts.SessionID = DefaultSessionID
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	stack, err := Build(sigCtx, opts.Config, logger)
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
	if _, err := eng.Start(sigCtx, opts.SessionID); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	enc := json.NewEncoder(opts.Out)
	reply := func(diff *domain.SelectionDiff, err error) error {
		r := jsonReply{Diff: diff}
		if err == nil || (diff != nil && errors.Is(err, reactive.ErrEvaluation)) {
			if v, verr := eng.View(sigCtx, opts.SessionID); verr == nil {
				r.View = &v
			} else if err == nil {
				err = verr
			}
		}
		if err != nil {
			r.Error = err.Error()
		}
		return enc.Encode(r)
	}

	if err := reply(nil, nil); err != nil {
		return err
	}

	lines := readLines(sigCtx, opts.In)
	for {
		select {
		case <-sigCtx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			diff, err := applyJSON(sigCtx, stack, opts.SessionID, line)
			if err := reply(diff, err); err != nil {
				return err
			}
		}
	}
}

func applyJSON(ctx context.Context, stack *Stack, sessionID, line string) (*domain.SelectionDiff, error) {
	line, err := SanitizeInput(line)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	p, err := config.DecodePatch(raw)
	if err != nil {
		return nil, err
	}
	return stack.Engine.Apply(ctx, sessionID, p)
}
