package cli

import (
	"fmt"
	"strings"

	"github.com/aretw0/covidash/internal/config"
	"github.com/aretw0/covidash/pkg/domain"
)

// Action is what a line typed at the prompt asks for.
type Action int

const (
	ActionNone Action = iota
	ActionApply
	ActionShow
	ActionStates
	ActionGraph
	ActionRefresh
	ActionHelp
	ActionQuit
)

// Command is a parsed prompt line. Patch is only set for ActionApply.
type Command struct {
	Action Action
	Patch  domain.InputPatch
}

const helpText = `Commands:
  metric cases|deaths        choose the metric
  range START END            choose the date range (YYYY-MM-DD)
  start DATE | end DATE      move one end of the range
  adjust on|off              show values as percent of population
  state NAME|all             chart one state, or every state
  set key=value ...          change several inputs at once
  show                       redraw the dashboard
  states                     list the states with data
  graph                      print the dependency graph (mermaid)
  refresh                    refetch the data
  help                       show this help
  quit                       save and exit`

var inputKeys = map[string]string{
	"metric": "metric",
	"start":  "start",
	"end":    "end",
	"adjust": "population_adjust",
	"state":  "state",
}

// ParseCommand parses one prompt line. Input commands are decoded with the
// same rules as HTTP and MCP patches.
func ParseCommand(line string) (Command, error) {
	line, err := SanitizeInput(line)
	if err != nil {
		return Command{}, err
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{Action: ActionNone}, nil
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "show", "s":
		return Command{Action: ActionShow}, nil
	case "states":
		return Command{Action: ActionStates}, nil
	case "graph":
		return Command{Action: ActionGraph}, nil
	case "refresh", "r":
		return Command{Action: ActionRefresh}, nil
	case "help", "h", "?":
		return Command{Action: ActionHelp}, nil
	case "quit", "q", "exit":
		return Command{Action: ActionQuit}, nil
	case "range":
		if len(args) != 2 {
			return Command{}, fmt.Errorf("%w: usage: range START END", domain.ErrInvalidInput)
		}
		return apply(map[string]any{"start": args[0], "end": args[1]})
	case "set":
		raw := make(map[string]any, len(args))
		for _, kv := range args {
			k, v, ok := strings.Cut(kv, "=")
			key, known := inputKeys[strings.ToLower(k)]
			if !ok || !known {
				return Command{}, fmt.Errorf("%w: expected key=value with key one of metric, start, end, adjust, state; got %q", domain.ErrInvalidInput, kv)
			}
			raw[key] = value(key, v)
		}
		return apply(raw)
	}

	key, known := inputKeys[verb]
	if !known {
		return Command{}, fmt.Errorf("unknown command %q, type help", verb)
	}
	if len(args) == 0 {
		return Command{}, fmt.Errorf("%w: %s needs a value", domain.ErrInvalidInput, verb)
	}
	// State names contain spaces.
	return apply(map[string]any{key: value(key, strings.Join(args, " "))})
}

func value(key, v string) any {
	if key == "population_adjust" {
		switch strings.ToLower(v) {
		case "on", "yes":
			return true
		case "off", "no":
			return false
		}
	}
	if key == "state" && (strings.EqualFold(v, "all") || strings.EqualFold(v, domain.ShowAll)) {
		return domain.ShowAll
	}
	return v
}

func apply(raw map[string]any) (Command, error) {
	p, err := config.DecodePatch(raw)
	if err != nil {
		return Command{}, err
	}
	return Command{Action: ActionApply, Patch: p}, nil
}
