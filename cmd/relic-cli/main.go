package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"
	"github.com/tliron/commonlog"

	"relic/internal/asm"
	"relic/internal/ir"
	"relic/internal/rewrite"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: relic <file.ir> [format-version]")
		fmt.Println("  format-version: 5.0 or 7.0 (default 7.0)")
		os.Exit(1)
	}

	commonlog.Configure(0, nil)

	startTime := time.Now()
	path := os.Args[1]

	version := rewrite.V70
	if len(os.Args) > 2 {
		v, err := rewrite.ParseFormatVersion(os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		version = v
	}

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read file: %v\n", err)
		os.Exit(1)
	}

	module, err := asm.Parse(path, string(source))
	if err != nil {
		fmt.Print(formatError(path, err, string(source)))
		color.Red("Assembly failed after %s", formatDuration(time.Since(startTime)))
		os.Exit(1)
	}

	rewriter := rewrite.NewRewriter(version)
	changed := rewriter.Run(module)

	fmt.Print(ir.Print(module))

	duration := formatDuration(time.Since(startTime))
	if changed {
		color.Green("Rewrote %s for format %s in %s", path, version, duration)
	} else {
		color.Green("No rewrite needed for %s (format %s, %s)", path, version, duration)
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%.2fmin", d.Minutes())
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1000000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

func formatError(path string, err error, source string) string {
	var perr participle.Error
	if !errors.As(err, &perr) {
		red := color.New(color.FgRed).SprintFunc()
		return fmt.Sprintf("%s: %v\n", red("error"), err)
	}

	pos := perr.Position()
	lines := strings.Split(source, "\n")

	var lineContent string
	if pos.Line-1 < len(lines) && pos.Line-1 >= 0 {
		lineContent = lines[pos.Line-1]
	}

	marker := strings.Repeat(" ", max(0, pos.Column-1)) + "^"

	red := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	lineNumberWidth := len(fmt.Sprintf("%d", pos.Line))
	if lineNumberWidth < 3 {
		lineNumberWidth = 3
	}
	indent := strings.Repeat(" ", lineNumberWidth)

	return fmt.Sprintf(
		"%s: %s\n%s┌─ %s:%d:%d\n%s│\n%3d│%s\n%s│%s\n\n",
		red("error"),
		perr.Message(),
		indent,
		path, pos.Line, pos.Column,
		indent,
		pos.Line, lineContent,
		indent,
		bold(marker),
	)
}
