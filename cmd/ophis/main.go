// Command ophis cross-assembles 6502-family source into a raw binary
// image (spec.md §6).
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/ophis-asm/ophis/asm"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:      "ophis",
		Usage:     "a cross-assembler for the 6502 processor family",
		Version:   version,
		ArgsUsage: "<source file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "outfile", Aliases: []string{"o"}, Usage: "write the assembled binary to `FILE`"},
			&cli.StringFlag{Name: "listfile", Aliases: []string{"l"}, Usage: "write an assembly listing to `FILE`"},
			&cli.StringFlag{Name: "mapfile", Aliases: []string{"m"}, Usage: "write the label map to `FILE`"},
			&cli.BoolFlag{Name: "undoc", Aliases: []string{"u"}, Usage: "enable 6510 undocumented opcodes"},
			&cli.BoolFlag{Name: "65c02", Aliases: []string{"c"}, Usage: "enable 65C02 extensions"},
			&cli.BoolFlag{Name: "4502", Aliases: []string{"4"}, Usage: "enable CSG 4502 extensions"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "show per-pass progress"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "suppress the final summary line"},
			&cli.IntFlag{Name: "debug", Aliases: []string{"d"}, Usage: "set verbosity directly (0-5), overrides -v/-q"},
			&cli.BoolFlag{Name: "no-warn", Usage: "suppress warnings"},
			&cli.BoolFlag{Name: "no-branch-extend", Usage: "error instead of rewriting out-of-range branches"},
			&cli.BoolFlag{Name: "no-zp-collapse", Usage: "never narrow an absolute operand to zero page"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ophis:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one source file is required", 2)
	}
	source := c.Args().Get(0)

	chips := 0
	for _, set := range []bool{c.Bool("undoc"), c.Bool("65c02"), c.Bool("4502")} {
		if set {
			chips++
		}
	}
	if chips > 1 {
		return cli.Exit("-u, -c, and -4 are mutually exclusive", 2)
	}

	level := asm.LevelSummary
	switch {
	case c.IsSet("debug"):
		level = asm.Level(c.Int("debug"))
	case c.Bool("quiet"):
		level = asm.LevelQuiet
	case c.Bool("verbose"):
		level = asm.LevelPasses
	}
	if level > asm.LevelLabels {
		level = asm.LevelLabels
	}

	opts := asm.Options{
		Undoc:          c.Bool("undoc"),
		CMOS65C02:      c.Bool("65c02") || c.Bool("4502"),
		Enable4502:     c.Bool("4502"),
		NoWarn:         c.Bool("no-warn"),
		NoBranchExtend: c.Bool("no-branch-extend"),
		NoCollapse:     c.Bool("no-zp-collapse"),
		Verbosity:      level,
		OutFile:        c.String("outfile"),
		ListFile:       c.String("listfile"),
		MapFile:        c.String("mapfile"),
	}

	if _, err := os.Stat(source); err != nil {
		return cli.Exit(errors.Wrapf(err, "cannot read %s", source), 1)
	}

	_, err := asm.AssembleFiles(source, opts, os.Stderr)
	if err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}
