package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the covidash ASCII art banner.
func PrintBanner(w io.Writer) {
	p := termenv.NewOutput(w).Profile
	lines := []struct{ text, color string }{
		{"                _     _           _     ", "#818cf8"},
		{"  ___ _____   _(_) __| | __ _ ___| |__  ", "#a78bfa"},
		{" / __/ _ \\ \\ / / |/ _` |/ _` / __| '_ \\ ", "#c084fc"},
		{"| (_| (_) \\ V /| | (_| | (_| \\__ \\ | | |", "#e879f9"},
		{" \\___\\___/ \\_/ |_|\\__,_|\\__,_|___/_| |_|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
