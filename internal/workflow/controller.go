package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"dealdesk/internal/document"
	"dealdesk/internal/logging"
	"dealdesk/internal/notifications"
	"dealdesk/internal/services"
)

const component = "workflow"

// Controller coordinates file selection, extraction, and export.
type Controller struct {
	backend   Backend
	logger    *slog.Logger
	timeout   time.Duration
	recorder  Recorder
	notifier  notifications.Service
	now       func() time.Time
	requestID func() string

	mu        sync.Mutex
	state     State
	uploadGen uint64
	exportGen uint64

	subscribers map[int]func(State)
	nextSub     int
	pending     []State
	deliverMu   sync.Mutex
}

// NewController constructs a controller in the empty idle state.
func NewController(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:     backend,
		logger:      logging.NewNop(),
		timeout:     DefaultRequestTimeout,
		now:         time.Now,
		requestID:   defaultRequestID,
		state:       State{Phase: PhaseIdle},
		subscribers: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, component)
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every transition.
// Observers run sequentially in transition order, outside the controller
// lock, so they may call back into the controller. A snapshot queued while
// another goroutine is delivering is delivered by that goroutine, possibly
// after the task that produced it has finished. The returned function removes
// the observer.
func (c *Controller) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
		})
	}
}

// SelectFile validates candidate and makes it the selected file. Non-PDF or
// malformed candidates set LastError to the channel's rejection message and
// return a validation error; nothing else changes.
func (c *Controller) SelectFile(candidate document.File, channel Channel) error {
	const op = "select_file"
	c.mu.Lock()
	if c.state.Busy() {
		c.mu.Unlock()
		return c.busyError(op)
	}
	if !candidate.WellFormed() || !candidate.IsPDF() {
		msg := channel.rejection()
		c.state.LastError = msg
		c.publishLocked()
		c.mu.Unlock()
		c.flush()
		c.logger.Info("file rejected",
			logging.String("file_name", candidate.Name),
			logging.String("mime_type", candidate.MIMEType),
			logging.String("channel", channel.String()),
		)
		return services.Wrap(services.ErrValidation, component, op, msg, nil)
	}

	selected := candidate
	c.state.SelectedFile = &selected
	c.state.UploadResult = nil
	c.state.ExportResult = nil
	c.state.LastError = ""
	c.uploadGen++
	c.exportGen++
	c.publishLocked()
	c.mu.Unlock()
	c.flush()

	c.logger.Info("file selected",
		logging.String("file_name", selected.Name),
		logging.Int64("size_bytes", selected.SizeBytes),
		logging.String("channel", channel.String()),
	)
	return nil
}

// SubmitForExtraction uploads the selected file. It returns (nil, nil)
// without changing state when no file is selected, and a concurrent
// operation error while another request is outstanding.
func (c *Controller) SubmitForExtraction(ctx context.Context) (*Task, error) {
	const op = "submit_extraction"
	c.mu.Lock()
	if c.state.Busy() {
		c.mu.Unlock()
		return nil, c.busyError(op)
	}
	if c.state.SelectedFile == nil {
		c.mu.Unlock()
		return nil, nil
	}
	file := *c.state.SelectedFile
	c.state.Phase = PhaseUploading
	c.state.LastError = ""
	gen := c.uploadGen
	c.publishLocked()
	c.mu.Unlock()
	c.flush()

	task := newTask(SlotUpload, c.requestID())
	reqCtx, cancel := c.requestContext(ctx, task)
	logging.WithContext(reqCtx, c.logger).Info("extraction started", logging.String("file_name", file.Name))

	go func() {
		defer cancel()
		c.runExtraction(reqCtx, task, file, gen)
	}()
	return task, nil
}

// SubmitForExport forwards the current extraction result. It returns
// (nil, nil) without changing state when there is no result.
func (c *Controller) SubmitForExport(ctx context.Context) (*Task, error) {
	const op = "submit_export"
	c.mu.Lock()
	if c.state.Busy() {
		c.mu.Unlock()
		return nil, c.busyError(op)
	}
	if c.state.UploadResult == nil {
		c.mu.Unlock()
		return nil, nil
	}
	result := c.state.UploadResult
	var fileName string
	if c.state.SelectedFile != nil {
		fileName = c.state.SelectedFile.Name
	}
	c.state.Phase = PhaseExporting
	c.state.LastError = ""
	gen := c.exportGen
	c.publishLocked()
	c.mu.Unlock()
	c.flush()

	task := newTask(SlotExport, c.requestID())
	reqCtx, cancel := c.requestContext(ctx, task)
	logging.WithContext(reqCtx, c.logger).Info("export started",
		logging.String("file_name", fileName),
		logging.String("processing_id", result.ProcessingID),
	)

	go func() {
		defer cancel()
		c.runExport(reqCtx, task, fileName, result, gen)
	}()
	return task, nil
}

// DismissUploadResult clears the extraction result and the export result
// derived from it while keeping the selected file.
func (c *Controller) DismissUploadResult() error {
	c.mu.Lock()
	if c.state.Busy() {
		c.mu.Unlock()
		return c.busyError("dismiss_upload_result")
	}
	changed := c.state.UploadResult != nil || c.state.ExportResult != nil
	c.state.UploadResult = nil
	c.state.ExportResult = nil
	c.exportGen++
	if changed {
		c.publishLocked()
	}
	c.mu.Unlock()
	c.flush()
	return nil
}

// Reset returns the controller to the empty idle state and invalidates any
// outstanding request. It always succeeds.
func (c *Controller) Reset() {
	c.mu.Lock()
	wasBusy := c.state.Busy()
	c.state = State{Phase: PhaseIdle}
	c.uploadGen++
	c.exportGen++
	c.publishLocked()
	c.mu.Unlock()
	c.flush()
	if wasBusy {
		c.logger.Info("reset while request outstanding; response will be discarded")
	}
}

func (c *Controller) busyError(op string) error {
	return services.Wrap(services.ErrConcurrentOperation, component, op, "another request is in progress", nil)
}

// requestContext detaches the request from caller cancellation and bounds it
// with the configured timeout.
func (c *Controller) requestContext(ctx context.Context, task *Task) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	reqCtx = services.WithRequestID(reqCtx, task.requestID)
	reqCtx = services.WithSlot(reqCtx, string(task.slot))
	return reqCtx, cancel
}

func (c *Controller) runExtraction(ctx context.Context, task *Task, file document.File, gen uint64) {
	started := c.now()
	result, err := callBackend(ctx, "extract", func() (*document.ExtractionResult, error) {
		return c.backend.Extract(ctx, file)
	})
	if err == nil && result == nil {
		err = services.Wrap(services.ErrMalformedResponse, component, "extract", "empty extraction result", nil)
	}

	attempt := Attempt{
		Slot:      SlotUpload,
		RequestID: task.requestID,
		FileName:  file.Name,
		FileSize:  file.SizeBytes,
		StartedAt: started,
	}

	c.mu.Lock()
	if gen != c.uploadGen {
		c.mu.Unlock()
		attempt.Outcome = OutcomeDiscarded
		attempt.Duration = c.now().Sub(started)
		c.discard(ctx, task, attempt, err)
		return
	}
	c.state.Phase = PhaseIdle
	if err != nil {
		c.state.LastError = "Upload failed: " + services.Reason(err)
	} else {
		c.state.UploadResult = result
		c.state.ExportResult = nil
	}
	c.publishLocked()
	c.mu.Unlock()
	c.flush()

	attempt.Duration = c.now().Sub(started)
	if err != nil {
		attempt.Outcome = OutcomeFailed
		attempt.ErrorKind = services.Kind(err)
		attempt.Error = services.Reason(err)
		c.onFailure(ctx, "upload of "+file.Name, err)
	} else {
		attempt.Outcome = OutcomeSucceeded
		attempt.DocType = result.DocType
		attempt.ProcessingID = result.ProcessingID
		task.extraction = result
		c.onExtracted(ctx, file.Name, result, attempt.Duration)
	}
	c.record(ctx, attempt)
	task.finish(err)
}

func (c *Controller) runExport(ctx context.Context, task *Task, fileName string, result *document.ExtractionResult, gen uint64) {
	started := c.now()
	exported, err := callBackend(ctx, "export", func() (*document.ExportResult, error) {
		return c.backend.Export(ctx, result)
	})
	if err == nil && exported == nil {
		err = services.Wrap(services.ErrMalformedResponse, component, "export", "empty export result", nil)
	}

	attempt := Attempt{
		Slot:         SlotExport,
		RequestID:    task.requestID,
		FileName:     fileName,
		DocType:      result.DocType,
		ProcessingID: result.ProcessingID,
		StartedAt:    started,
	}

	c.mu.Lock()
	if gen != c.exportGen {
		c.mu.Unlock()
		attempt.Outcome = OutcomeDiscarded
		attempt.Duration = c.now().Sub(started)
		c.discard(ctx, task, attempt, err)
		return
	}
	c.state.Phase = PhaseIdle
	if err != nil {
		c.state.LastError = "Export failed: " + services.Reason(err)
	} else {
		c.state.ExportResult = exported
	}
	c.publishLocked()
	c.mu.Unlock()
	c.flush()

	attempt.Duration = c.now().Sub(started)
	if err != nil {
		attempt.Outcome = OutcomeFailed
		attempt.ErrorKind = services.Kind(err)
		attempt.Error = services.Reason(err)
		c.onFailure(ctx, "export of "+fileName, err)
	} else {
		attempt.Outcome = OutcomeSucceeded
		attempt.SheetURL = exported.SheetURL
		task.export = exported
		c.onExported(ctx, fileName, exported, attempt.Duration)
	}
	c.record(ctx, attempt)
	task.finish(err)
}

func (c *Controller) discard(ctx context.Context, task *Task, attempt Attempt, err error) {
	if err != nil {
		attempt.ErrorKind = services.Kind(err)
		attempt.Error = services.Reason(err)
	}
	logging.WithContext(ctx, c.logger).Info("stale response discarded",
		logging.String("file_name", attempt.FileName),
		logging.Duration("duration", attempt.Duration),
	)
	c.record(ctx, attempt)
	task.finish(ErrStaleResponse)
}

// callBackend runs fn, converting panics into errors and deadline overruns
// into timeout errors.
func callBackend[T any](ctx context.Context, op string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = services.Wrap(services.ErrTransport, component, op, fmt.Sprintf("backend panic: %v", r), nil)
		}
	}()
	result, err = fn()
	if err != nil && !errors.Is(err, services.ErrTimeout) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = services.WrapTimeout(component, op, "request timed out", err)
	}
	return result, err
}

func (c *Controller) snapshotLocked() State {
	snap := c.state
	if snap.SelectedFile != nil {
		file := *snap.SelectedFile
		snap.SelectedFile = &file
	}
	return snap
}

func (c *Controller) publishLocked() {
	if len(c.subscribers) == 0 {
		return
	}
	c.pending = append(c.pending, c.snapshotLocked())
}

// flush delivers pending snapshots. Only one goroutine delivers at a time; a
// flush that finds delivery in progress leaves its snapshots to the active
// deliverer, which rechecks the queue after releasing deliverMu.
func (c *Controller) flush() {
	for {
		if !c.deliverMu.TryLock() {
			return
		}
		c.drain()
		c.deliverMu.Unlock()

		c.mu.Lock()
		empty := len(c.pending) == 0
		c.mu.Unlock()
		if empty {
			return
		}
	}
}

func (c *Controller) drain() {
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.mu.Unlock()
			return
		}
		batch := c.pending
		c.pending = nil
		ids := make([]int, 0, len(c.subscribers))
		for id := range c.subscribers {
			ids = append(ids, id)
		}
		c.mu.Unlock()

		slices.Sort(ids)
		for _, snap := range batch {
			for _, id := range ids {
				c.mu.Lock()
				fn, ok := c.subscribers[id]
				c.mu.Unlock()
				if ok {
					fn(snap)
				}
			}
		}
	}
}
