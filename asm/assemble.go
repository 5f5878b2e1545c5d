package asm

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ophis-asm/ophis/opcodes"
)

// Options controls one assembly run (spec.md §6's flag set).
type Options struct {
	Undoc          bool // -u/--undoc: enable 6510 undocumented opcodes
	CMOS65C02      bool // -c/--65c02: enable 65C02 extensions
	Enable4502     bool // -4/--4502: enable CSG 4502 extensions (implies CMOS65C02)
	NoWarn         bool // --no-warn: suppress warnings
	NoBranchExtend bool // --no-branch-extend: error instead of rewriting an out-of-range branch
	NoCollapse     bool // --no-zp-collapse: never narrow an absolute operand to zero page
	Verbosity      Level
	OutFile        string
	ListFile       string
	MapFile        string
}

// Context is the process-scope state threaded through one Assemble
// call: Environment, Diagnostics, macro registry, opcode table and
// chip mask, logger, and the active character map, all owned here
// rather than as package-level globals (spec.md §9's explicit redesign
// note). The .require loaded-file set lives on the Parser.
type Context struct {
	Env     *Environment
	Diag    *Diagnostics
	Macros  *MacroTable
	Tbl     *opcodes.Table
	Chips   opcodes.Chip
	Logger  *Logger
	Opts    Options
	Charmap *[256]byte

	uniq int // monotonic macro-expansion uniquifier
}

// Result is everything Assemble produces (spec.md §4.6).
type Result struct {
	Bytes  []byte
	Listing []ListingLine
	Labels  map[string]int
	Diag    *Diagnostics
}

// osFileReader is the concrete FileReader backing real assembly runs,
// grounded on db47h-ngaro's defer-close-at-every-exit-path idiom: every
// read opens, defers Close, and reads to completion before returning.
type osFileReader struct {
	baseDirs []string
}

// NewOSFileReader builds a FileReader that resolves relative paths
// against the given search directories in order (spec.md §4.1: include
// search path), falling back to the current directory.
func NewOSFileReader(searchDirs ...string) FileReader {
	return &osFileReader{baseDirs: searchDirs}
}

func (r *osFileReader) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	for _, dir := range r.baseDirs {
		candidate := filepath.Join(dir, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return path
}

func (r *osFileReader) ReadSource(path string) (string, error) {
	full := r.resolve(path)
	f, err := os.Open(full)
	if err != nil {
		return "", errors.Wrapf(err, "opening %s", full)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", full)
	}
	return string(data), nil
}

func (r *osFileReader) ReadBinary(path string) ([]byte, error) {
	full := r.resolve(path)
	f, err := os.Open(full)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", full)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", full)
	}
	return data, nil
}

// Assemble drives the full pipeline named in spec.md §4.4 over a
// single entry source file, using reader for all file I/O and diag as
// the shared diagnostics sink. It halts between passes as soon as any
// pass reports a hard error (spec.md §7).
func Assemble(path string, reader FileReader, diag *Diagnostics, logger *Logger, opts Options) *Result {
	ctx := &Context{
		Env:     NewEnvironment(),
		Diag:    diag,
		Macros:  NewMacroTable(),
		Tbl:     opcodes.Std(),
		Chips:   opcodes.Enabled(opts.Undoc, opts.CMOS65C02, opts.Enable4502),
		Logger:  logger,
		Opts:    opts,
		Charmap: nil,
	}

	parser := NewParser(ctx.Tbl, diag, reader, logger)
	ctx.Charmap = parser.charmap

	root := parser.ParseFile(path)
	if opts.OutFile == "" {
		opts.OutFile = parser.outfile
		ctx.Opts.OutFile = parser.outfile
	}
	logger.IR(root.Dump)
	if diag.Count() > 0 {
		return &Result{Diag: diag}
	}

	root = runPass(ctx, root, "DefineMacros", DefineMacros)
	if diag.Count() > 0 {
		return &Result{Diag: diag}
	}

	root = runFixPoint(ctx, root, "ExpandMacros", func(ctx *Context, n *Node) (*Node, int) {
		return ExpandMacros(ctx, n)
	})
	if diag.Count() > 0 {
		return &Result{Diag: diag}
	}

	runLabelFixPoint(ctx, root)
	if diag.Count() > 0 {
		return &Result{Diag: diag}
	}

	logger.Pass("Pass: CircularityCheck")
	CircularityCheck(ctx, root)
	if diag.Count() > 0 {
		return &Result{Diag: diag}
	}

	logger.Pass("Pass: CheckExprs")
	CheckExprs(ctx, root)
	if diag.Count() > 0 {
		return &Result{Diag: diag}
	}

	logger.Pass("Pass: EasyModes")
	root = EasyModes(ctx, root)
	logger.IR(root.Dump)
	if diag.Count() > 0 {
		return &Result{Diag: diag}
	}

	if !opts.NoBranchExtend {
		root = runFixPoint(ctx, root, "Collapse/ExtendBranches", func(ctx *Context, n *Node) (*Node, int) {
			n2, c1 := Collapse(ctx, n)
			n3, c2 := ExtendBranches(ctx, n2)
			return n3, c1 + c2
		})
	} else {
		root = runFixPoint(ctx, root, "Collapse", func(ctx *Context, n *Node) (*Node, int) {
			return Collapse(ctx, n)
		})
	}
	if diag.Count() > 0 {
		return &Result{Diag: diag}
	}

	logger.Pass("Pass: NormalizeModes")
	root = NormalizeModes(ctx, root)
	logger.IR(root.Dump)

	logger.Pass("Pass: UpdateLabels")
	UpdateLabels(ctx, root)
	logger.Labels(func() string { return dumpLabels(ctx.Env) })
	if diag.Count() > 0 {
		return &Result{Diag: diag}
	}

	logger.Pass("Pass: Assembler")
	bytes, listing := AssembleBytes(ctx, root)

	return &Result{
		Bytes:   bytes,
		Listing: listing,
		Labels:  snapshotLabels(ctx.Env),
		Diag:    diag,
	}
}

func runPass(ctx *Context, root *Node, name string, fn func(*Context, *Node) *Node) *Node {
	ctx.Logger.Pass("Pass: %s", name)
	out := fn(ctx, root)
	ctx.Logger.IR(out.Dump)
	return out
}

// runFixPoint runs fn repeatedly until it reports zero changes, up to
// 100 iterations (spec.md §4.4's final paragraph); exceeding the cap
// reports a "cannot converge" error.
func runFixPoint(ctx *Context, root *Node, name string, fn func(*Context, *Node) (*Node, int)) *Node {
	const maxIterations = 100
	for i := 0; i < maxIterations; i++ {
		ctx.Logger.Pass("Pass: %s (iteration %d)", name, i+1)
		next, changed := fn(ctx, root)
		root = next
		ctx.Logger.IR(root.Dump)
		if changed == 0 {
			return root
		}
		if ctx.Diag.Count() > 0 {
			return root
		}
	}
	ctx.Diag.Error(root.Point, "%s: cannot converge -- recursive dependency?", name)
	return root
}

// runLabelFixPoint is InitLabels's fixed point: it has no tree
// replacement, only a changed-count, so it is driven separately from
// runFixPoint's (*Node, int) shape.
func runLabelFixPoint(ctx *Context, root *Node) {
	const maxIterations = 100
	for i := 0; i < maxIterations; i++ {
		ctx.Logger.Pass("Pass: InitLabels (iteration %d)", i+1)
		changed := InitLabels(ctx, root)
		ctx.Logger.Labels(func() string { return dumpLabels(ctx.Env) })
		if changed == 0 {
			return
		}
		if ctx.Diag.Count() > 0 {
			return
		}
	}
	ctx.Diag.Error(root.Point, "InitLabels: cannot converge -- recursive dependency?")
}

func dumpLabels(env *Environment) string {
	var out string
	for name, v := range env.labels {
		out += fmt.Sprintf("%s = $%04X\n", name, v)
	}
	return out
}

func snapshotLabels(env *Environment) map[string]int {
	out := make(map[string]int, len(env.labels))
	for k, v := range env.labels {
		out[k] = v
	}
	return out
}

// AssembleFiles is the convenience entry point used by cmd/ophis: it
// wires an os-backed FileReader rooted at the entry file's directory
// and writes the resulting binary, listing, and label map per opts.
func AssembleFiles(entry string, opts Options, stderr io.Writer) (*Result, error) {
	dir := filepath.Dir(entry)
	reader := NewOSFileReader(dir, ".")
	diag := NewDiagnostics(stderr, opts.NoWarn)
	logger := NewLogger(stderr, opts.Verbosity)

	res := Assemble(filepath.Base(entry), reader, diag, logger, opts)

	if diag.Count() > 0 {
		diag.Report()
		return res, diag.Err()
	}

	outPath := opts.OutFile
	if outPath == "" {
		outPath = defaultOutputName(entry)
	}
	if err := os.WriteFile(outPath, res.Bytes, 0644); err != nil {
		return res, errors.Wrapf(err, "writing %s", outPath)
	}

	if opts.ListFile != "" {
		if err := os.WriteFile(opts.ListFile, []byte(RenderListing(res.Listing)), 0644); err != nil {
			return res, errors.Wrapf(err, "writing %s", opts.ListFile)
		}
	}
	if opts.MapFile != "" {
		if err := os.WriteFile(opts.MapFile, []byte(RenderLabelMap(res.Labels)), 0644); err != nil {
			return res, errors.Wrapf(err, "writing %s", opts.MapFile)
		}
	}

	diag.Report()
	logger.Summary("Wrote %d bytes to %s", len(res.Bytes), outPath)
	return res, nil
}

func defaultOutputName(entry string) string {
	ext := filepath.Ext(entry)
	base := entry[:len(entry)-len(ext)]
	if base == "" {
		base = entry
	}
	return base + ".bin"
}
