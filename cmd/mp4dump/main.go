// Command mp4dump reads an ISOBMFF/MP4/HEIF file and prints its box
// structure, field by field, in the style of `mp4box -info` or `bento4
// mp4dump`.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/tetsuo/isobmff"
)

// isTerminal resolves ColorAuto: color is enabled only when stdout is an
// actual terminal, not a pipe or redirected file.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// toggle wires a --name / --no-name pair to a single resolved value,
// mirroring the toggle pairs in spec.md §6. --no-name always wins when
// both are given; with neither given, the flag's own default applies.
type toggle struct {
	name string
	pos  bool
}

func boolFlag(name string, value bool, usage string) *toggle {
	t := &toggle{name: name}
	flag.BoolVar(&t.pos, name, value, usage)
	flag.Bool("no-"+name, false, "")
	return t
}

func (t *toggle) resolve() bool {
	result := t.pos
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "no-"+t.name {
			result = false
		}
	})
	return result
}

func main() {
	opts := bmff.DefaultOptions()

	colorOn := flag.Bool("C", false, "force color output on")
	flag.BoolVar(colorOn, "color", false, "force color output on")
	colorOff := flag.Bool("no-color", false, "force color output off")

	rows := flag.Int("r", opts.MaxRows, "truncate tables and hex dumps to N lines (0 = unlimited)")
	flag.IntVar(rows, "rows", opts.MaxRows, "truncate tables and hex dumps to N lines (0 = unlimited)")

	offsets := boolFlag("offsets", opts.ShowOffsets, "show the @ offset annotation on box headers")
	lengths := boolFlag("lengths", opts.ShowLengths, "show the (LEN) annotation on box headers")
	descriptions := boolFlag("descriptions", opts.ShowDescriptions, "show human-readable annotations on enumerated fields")
	defaults := boolFlag("defaults", opts.ShowDefaults, "show fields equal to their spec default")

	indent := flag.Int("indent", opts.Indent, "spaces per indentation level")
	bytesPerLine := flag.Int("bytes-per-line", opts.BytesPerLine, "hex-dump line width")
	sencIV := flag.Int("senc-per-sample-iv", 0, "per-sample IV size (bytes) to assume for senc when no tenc is in scope")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	opts.MaxRows = *rows
	opts.ShowOffsets = offsets.resolve()
	opts.ShowLengths = lengths.resolve()
	opts.ShowDescriptions = descriptions.resolve()
	opts.ShowDefaults = defaults.resolve()
	opts.Indent = *indent
	opts.BytesPerLine = *bytesPerLine
	opts.SencPerSampleIV = *sencIV

	switch {
	case *colorOn:
		opts.Color = bmff.ColorOn
	case *colorOff:
		opts.Color = bmff.ColorOff
	default:
		opts.Color = bmff.ColorAuto
	}

	path := flag.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error statting file: %v\n", err)
		os.Exit(1)
	}

	colorEnabled := opts.Color.Resolve(isTerminal(os.Stdout))
	e := bmff.NewEmitter(os.Stdout, opts, colorEnabled)

	if err := bmff.Dissect(f, info.Size(), e, opts); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		os.Exit(1)
	}
}
