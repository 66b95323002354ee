/*
poster.go - Batch orchestration

PURPOSE:
  Runs a whole batch against one engine session: open the data file,
  process the items in order, close the data file. One bad item never
  stops the batch.

BATCH FLOW:
  1. Serialize: one batch at a time per Poster (the session is stateful)
  2. Close any session left open by an earlier failure
  3. Open the data file with the caller's credentials
     - failure here is the only batch-level error (ErrSessionOpen)
  4. Read the account number length once
  5. For each item:
     - skip items with no action or no body
     - skip actions that do not route
     - run the handler inside the per-item boundary
  6. Close the data file exactly once

PER-ITEM BOUNDARY:
  Handlers return errors; the boundary turns them into a Result with one
  message. A panicking handler is recovered at the same point and reported
  as an internal failure. Handles opened by the handler are already closed
  by then (see guard.go).

SEE ALSO:
  - router.go: Action table
  - errors.go: Failure kinds and messages
*/
package poster

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/sage-poster/engine"
	"github.com/warp/sage-poster/patch"
)

// Identity presented to the engine when opening a data file.
const (
	DefaultAppName    = "Sage 50 SDK Web API"
	DefaultAppID      = "SASWA"
	DefaultAppVersion = 1
)

// Credentials are supplied per batch by the caller.
type Credentials struct {
	Username  string
	Password  string
	MultiUser bool
}

// Options configures a Poster.
type Options struct {
	// DataFile is the company data file opened for every batch.
	DataFile string

	AppName    string
	AppID      string
	AppVersion int

	// Router overrides the default action table.
	Router *Router
	Logger *slog.Logger
}

// Poster runs batches against one engine session.
type Poster struct {
	session engine.Session
	opts    Options
	router  *Router
	logger  *slog.Logger
	now     func() time.Time

	mu sync.Mutex
}

// New creates a Poster. The session is opened and closed per batch.
func New(session engine.Session, opts Options) *Poster {
	if opts.AppName == "" {
		opts.AppName = DefaultAppName
	}
	if opts.AppID == "" {
		opts.AppID = DefaultAppID
	}
	if opts.AppVersion == 0 {
		opts.AppVersion = DefaultAppVersion
	}

	router := opts.Router
	if router == nil {
		router = NewRouter()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Poster{
		session: session,
		opts:    opts,
		router:  router,
		logger:  logger,
		now:     time.Now,
	}
}

// Router returns the action table in use.
func (p *Poster) Router() *Router {
	return p.router
}

// Run processes a batch. It returns an error only when the data file cannot
// be opened; item failures are reported inside the response.
func (p *Poster) Run(ctx context.Context, creds Credentials, batch BatchRequest) (*BatchResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger := p.logger.With("batch_id", uuid.NewString())

	_ = p.session.Close()
	err := p.session.Open(ctx, engine.OpenOptions{
		Path:       p.opts.DataFile,
		Username:   creds.Username,
		Password:   creds.Password,
		MultiUser:  creds.MultiUser,
		AppName:    p.opts.AppName,
		AppID:      p.opts.AppID,
		AppVersion: p.opts.AppVersion,
	})
	if err != nil {
		logger.Warn("session open failed", "data_file", p.opts.DataFile, "user", creds.Username, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSessionOpen, err)
	}
	defer func() {
		if err := p.session.Close(); err != nil {
			logger.Warn("session close failed", "error", err)
		}
	}()

	sc := &Scope{
		Session: p.session,
		Env:     &patch.Env{Accounts: patch.LoadNormalizer(ctx, p.session.Database())},
		Logger:  logger,
	}
	logger.Info("batch started", "items", len(batch.Requests), "account_length", sc.Env.Accounts.Length)

	start := p.now()
	resp := &BatchResponse{Responses: make([]*Result, 0, len(batch.Requests))}
	for i, op := range batch.Requests {
		if op.Action == "" || op.Body == nil {
			logger.Debug("item skipped", "index", i, "reason", "missing action or body")
			continue
		}
		action, h, ok := p.router.Resolve(op.Action)
		if !ok {
			logger.Debug("item skipped", "index", i, "reason", "unroutable action", "action", op.Action)
			continue
		}

		res := invoke(ctx, sc, action, h, op.Body)
		if res.Err != nil {
			logger.Warn("item failed", "index", i, "action", action.String(), "kind", res.Err.Kind, "error", res.Err)
		}
		res.compact()
		resp.Responses = append(resp.Responses, res)
	}

	resp.TotalRequests = len(resp.Responses)
	resp.JobDuration = FormatDuration(p.now().Sub(start))
	logger.Info("batch finished", "results", resp.TotalRequests, "duration", resp.JobDuration)
	return resp, nil
}

// invoke is the per-item boundary.
func invoke(ctx context.Context, sc *Scope, action Action, h Handler, body *Payload) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(&ItemError{
				Kind:    KindInternal,
				Message: fmt.Sprintf("%s FAILED: %v", action.Verb.Title(), r),
				Err:     &PanicError{Value: r, Stack: string(debug.Stack())},
			})
		}
	}()

	res, err := h(ctx, sc, body)
	if err != nil {
		return failed(asItemError(action, err))
	}
	if res == nil {
		res = &Result{}
	}
	return res
}

// FormatDuration renders whole minutes and seconds, e.g. "1m 5s".
func FormatDuration(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}
