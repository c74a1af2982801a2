// Command fern runs the Fern interpreter: a REPL when invoked bare,
// a file runner when given source files, a one-shot evaluator with
// -e, and a compiled-image saver/loader.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/peterh/liner"
	"github.com/tliron/commonlog"

	"github.com/fernlang/fern/config"
	"github.com/fernlang/fern/image"
	"github.com/fernlang/fern/vm"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("fern.repl")

func main() {
	expr := flag.String("e", "", "evaluate a single expression and exit")
	saveImage := flag.String("save-image", "", "compile the input and save it as a CBOR image")
	loadImage := flag.String("load-image", "", "run a previously saved CBOR image")
	verbose := flag.Int("v", 0, "log verbosity")
	flag.Parse()

	commonlog.Configure(*verbose, nil)

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fmt.Fprintln(os.Stderr, "fern:", err)
		os.Exit(1)
	}

	mem := vm.NewMemory()
	session := &session{cfg: cfg}

	switch {
	case *loadImage != "":
		err = session.runImage(mem, *loadImage)
	case *expr != "":
		err = session.evalSource(mem, *expr, *saveImage)
	case flag.NArg() > 0:
		err = session.runFiles(mem, flag.Args(), *saveImage)
	default:
		err = session.repl(mem)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "fern:", err)
		os.Exit(1)
	}
}

// session carries the pieces every entry point shares.
type session struct {
	cfg *config.Config
}

// evalTask is the mutator task for one source chunk: parse, compile
// and evaluate each expression, returning the last result printed.
type evalTask struct {
	budget uint32
	// capture the image of the last compiled function when asked
	snapshot **image.FunctionImage
}

func (e *evalTask) Run(v *vm.MutatorView, source string) (string, error) {
	exprs, err := vm.ParseAll(v, source)
	if err != nil {
		return "", err
	}

	thread, err := vm.AllocThread(v)
	if err != nil {
		return "", err
	}

	out := ""
	for _, expr := range exprs {
		fn, err := vm.Compile(v, expr)
		if err != nil {
			return "", err
		}
		if e.snapshot != nil {
			img, err := image.Snapshot(v, fn.Get())
			if err != nil {
				return "", err
			}
			*e.snapshot = img
		}
		result, err := thread.Get().EvalWithBudget(v, fn, e.budget)
		if err != nil {
			return "", err
		}
		out = vm.PrintValue(v, result)
	}
	return out, nil
}

func (s *session) evalSource(mem *vm.Memory, source, imagePath string) error {
	task := &evalTask{budget: s.cfg.Limits.EvalSlice}
	var snap *image.FunctionImage
	if imagePath != "" {
		task.snapshot = &snap
	}

	out, err := vm.Mutate(mem, task, source)
	if err != nil {
		return err
	}
	fmt.Println(out)

	if imagePath != "" && snap != nil {
		return image.WriteFile(imagePath, snap)
	}
	return nil
}

func (s *session) runFiles(mem *vm.Memory, paths []string, imagePath string) error {
	for _, path := range paths {
		source, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := s.evalSource(mem, string(source), imagePath); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// imageTask rehydrates a loaded image and runs it.
type imageTask struct {
	budget uint32
}

func (e *imageTask) Run(v *vm.MutatorView, img *image.FunctionImage) (string, error) {
	fn, err := image.Rehydrate(v, img)
	if err != nil {
		return "", err
	}
	thread, err := vm.AllocThread(v)
	if err != nil {
		return "", err
	}
	result, err := thread.Get().EvalWithBudget(v, fn, e.budget)
	if err != nil {
		return "", err
	}
	return vm.PrintValue(v, result), nil
}

func (s *session) runImage(mem *vm.Memory, path string) error {
	img, err := image.ReadFile(path)
	if err != nil {
		return err
	}
	out, err := vm.Mutate(mem, &imageTask{budget: s.cfg.Limits.EvalSlice}, img)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// replTask evaluates one line against a persistent thread, so
// definitions survive between lines.
type replTask struct {
	thread vm.CellPtr[vm.Thread]
	seeded bool
	budget uint32
	trace  bool
}

func (r *replTask) Run(v *vm.MutatorView, line string) (string, error) {
	if !r.seeded {
		thread, err := vm.AllocThread(v)
		if err != nil {
			return "", err
		}
		r.thread = vm.NewCellPtr(thread)
		r.seeded = true
	}
	thread := r.thread.Get(v)

	exprs, err := vm.ParseAll(v, line)
	if err != nil {
		return "", err
	}

	out := ""
	for _, expr := range exprs {
		fn, err := vm.Compile(v, expr)
		if err != nil {
			return "", err
		}
		if r.trace {
			listing, err := fn.Get().Code(v).Get().Disassemble(v)
			if err != nil {
				return "", err
			}
			fmt.Println(listing)
		}
		result, err := thread.Get().EvalWithBudget(v, fn, r.budget)
		if err != nil {
			return "", err
		}
		out = vm.PrintValue(v, result)
	}
	return out, nil
}

func (s *session) repl(mem *vm.Memory) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := s.cfg.HistoryPath()
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	log.Info("Fern REPL ready")
	fmt.Println("Fern interpreter; blank line or ctrl-d to exit")

	task := &replTask{budget: s.cfg.Limits.EvalSlice, trace: s.cfg.Repl.Trace}
	for {
		input, err := line.Prompt("fern> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if input == "" {
			return nil
		}
		line.AppendHistory(input)

		out, err := vm.Mutate(mem, task, input)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(out)
	}
}
