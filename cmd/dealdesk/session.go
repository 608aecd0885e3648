package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"dealdesk/internal/config"
	"dealdesk/internal/document"
	"dealdesk/internal/services"
	"dealdesk/internal/workflow"
)

const sessionPrompt = "dealdesk> "

// session is a line-driven host UI. It issues controller operations and
// renders transitions it observes through Subscribe.
type session struct {
	controller *workflow.Controller
	colorize   bool

	outMu sync.Mutex
	out   io.Writer

	// prev is only touched by the observer, which runs sequentially.
	prev        workflow.State
	unsubscribe func()

	taskMu sync.Mutex
	task   *workflow.Task
}

func newSession(controller *workflow.Controller, out io.Writer, colorize bool) *session {
	s := &session{
		controller: controller,
		colorize:   colorize,
		out:        out,
		prev:       controller.State(),
	}
	s.unsubscribe = controller.Subscribe(s.observe)
	return s
}

func (s *session) close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *session) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	s.printf("Type 'help' for commands.\n")
	for {
		s.printf("%s", sessionPrompt)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := s.execute(ctx, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.printf("%s\n", err)
		}
		if quit {
			return nil
		}
	}
	s.printf("\n")
	return scanner.Err()
}

func (s *session) execute(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "select":
		return false, s.selectFile(arg, workflow.ChannelPicker)
	case "drop":
		return false, s.selectFile(arg, workflow.ChannelDrop)
	case "upload":
		return false, s.submit(ctx, s.controller.SubmitForExtraction, "select a PDF first")
	case "export":
		return false, s.submit(ctx, s.controller.SubmitForExport, "nothing to export; upload a PDF first")
	case "wait":
		return false, s.wait(ctx)
	case "dismiss":
		if err := s.controller.DismissUploadResult(); err != nil {
			return false, busyMessage(err)
		}
		s.printf("Extraction result dismissed\n")
		return false, nil
	case "reset":
		s.controller.Reset()
		s.printf("Session reset\n")
		return false, nil
	case "show":
		s.withOutput(func(out io.Writer) { renderState(out, s.controller.State(), s.colorize) })
		return false, nil
	case "help":
		s.printf("Commands: select <path>, drop <path>, upload, export, wait, dismiss, reset, show, help, quit\n")
		return false, nil
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q (type 'help')", name)
	}
}

func (s *session) selectFile(arg string, channel workflow.Channel) error {
	if arg == "" {
		return errors.New("usage: select <path>")
	}
	path, err := config.ExpandPath(arg)
	if err != nil {
		return err
	}
	file, err := document.Probe(path)
	if err != nil {
		return err
	}
	if err := s.controller.SelectFile(file, channel); err != nil {
		if errors.Is(err, services.ErrValidation) {
			return errors.New(services.Reason(err))
		}
		return busyMessage(err)
	}
	s.printf("Selected %s\n", describeFile(&file))
	return nil
}

func (s *session) submit(ctx context.Context, op func(context.Context) (*workflow.Task, error), noop string) error {
	task, err := op(ctx)
	if err != nil {
		return busyMessage(err)
	}
	if task == nil {
		return errors.New(noop)
	}
	s.taskMu.Lock()
	s.task = task
	s.taskMu.Unlock()
	return nil
}

func (s *session) wait(ctx context.Context) error {
	s.taskMu.Lock()
	task := s.task
	s.taskMu.Unlock()
	if task == nil {
		return nil
	}
	err := task.Wait(ctx)
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, workflow.ErrStaleResponse):
		s.printf("Response discarded; the session changed while the request was outstanding\n")
	}
	// Failures are reported through the observer.
	return nil
}

// observe renders request starts and outcomes. Synchronous operations print
// their own confirmation.
func (s *session) observe(next workflow.State) {
	prev := s.prev
	s.prev = next

	s.withOutput(func(out io.Writer) {
		switch {
		case next.Uploading() && !prev.Uploading():
			fmt.Fprintf(out, "Uploading %s...\n", describeFile(next.SelectedFile))
		case next.Exporting() && !prev.Exporting():
			fmt.Fprintln(out, "Exporting to spreadsheet...")
		case prev.Busy() && !next.Busy():
			switch {
			case next.LastError != "":
				fmt.Fprintf(out, "Error: %s\n", next.LastError)
			case prev.Uploading() && next.UploadResult != nil:
				renderExtraction(out, next.UploadResult, s.colorize)
			case prev.Exporting() && next.ExportResult != nil:
				renderExport(out, next.ExportResult, s.colorize)
			}
		}
	})
}

func (s *session) printf(format string, args ...any) {
	s.withOutput(func(out io.Writer) { fmt.Fprintf(out, format, args...) })
}

func (s *session) withOutput(fn func(io.Writer)) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fn(s.out)
}

func busyMessage(err error) error {
	if errors.Is(err, services.ErrConcurrentOperation) {
		return errors.New("busy: wait for the outstanding request to finish")
	}
	return err
}
