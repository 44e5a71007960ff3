package sync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sandeepkandula/archivesync/auth"
)

// DefaultMaxDepth bounds recursion when a Request leaves MaxDepth unset.
const DefaultMaxDepth = 64

// CollisionPolicy decides what happens when two remote files share a name in
// the flattened destination.
type CollisionPolicy int

const (
	// CollisionOverwrite lets the file fetched last in traversal order win.
	CollisionOverwrite CollisionPolicy = iota
	// CollisionReject keeps the first file and records later ones as failures.
	CollisionReject
)

// ParseCollisionPolicy accepts "overwrite" (or "") and "reject".
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch s {
	case "", "overwrite":
		return CollisionOverwrite, nil
	case "reject":
		return CollisionReject, nil
	}
	return 0, fmt.Errorf("unknown collision policy %q", s)
}

func (p CollisionPolicy) String() string {
	if p == CollisionReject {
		return "reject"
	}
	return "overwrite"
}

// Request configures a sync operation.
type Request struct {
	RootPath    string          // remote folder to walk, slash separated
	Destination string          // directory every fetched file lands in
	Select      Predicate       // files to fetch; nil selects every file
	Collision   CollisionPolicy // handling of duplicate names in Destination
	MaxDepth    int             // folder nesting limit below RootPath; <= 0 means DefaultMaxDepth
}

// Outcome summarises a finished (or canceled) walk.
type Outcome struct {
	FoldersEntered int
	FilesFetched   int
	FilesSkipped   int
	Overwritten    int // fetched files that replaced an earlier fetch of the same name
	Failures       []Failure
	Canceled       bool
}

// Err joins every recorded failure, or returns nil for a clean run.
func (o Outcome) Err() error {
	errs := make([]error, 0, len(o.Failures))
	for _, f := range o.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
	}
	return errors.Join(errs...)
}

// Engine walks a remote tree and fetches the files a Request selects.
type Engine struct {
	lister Lister
	sink   Sink
	log    *zap.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// NewEngine creates an Engine listing through lister and storing through sink.
func NewEngine(lister Lister, sink Sink, opts ...Option) *Engine {
	e := &Engine{lister: lister, sink: sink, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sync walks req.RootPath depth first, in listing order. Folder and file
// failures are recorded in the returned Outcome and never stop the walk;
// cancellation of ctx stops it between entries.
func (e *Engine) Sync(ctx context.Context, cred auth.Credential, req Request) Outcome {
	if req.Select == nil {
		req.Select = Everything
	}
	if req.MaxDepth <= 0 {
		req.MaxDepth = DefaultMaxDepth
	}

	w := &walker{
		Engine:  e,
		ctx:     ctx,
		cred:    cred,
		req:     req,
		visited: make(map[string]struct{}),
		fetched: make(map[string]string),
	}

	root := NormalizePath(req.RootPath)
	w.visited[root] = struct{}{}
	w.walk(root, 0)

	e.log.Info("sync finished",
		zap.String("root", root),
		zap.Int("folders", w.out.FoldersEntered),
		zap.Int("fetched", w.out.FilesFetched),
		zap.Int("skipped", w.out.FilesSkipped),
		zap.Int("failures", len(w.out.Failures)),
		zap.Bool("canceled", w.out.Canceled),
	)
	return w.out
}

// walker holds the state of one Sync call.
type walker struct {
	*Engine
	ctx     context.Context
	cred    auth.Credential
	req     Request
	visited map[string]struct{}
	fetched map[string]string // file name -> remote path it was fetched from
	out     Outcome
}

// walk processes dir and reports whether the whole walk must stop.
func (w *walker) walk(dir string, depth int) bool {
	if w.canceled() {
		return true
	}

	for entry, err := range w.lister.List(w.ctx, w.cred, dir) {
		if err != nil {
			if w.canceled() {
				return true
			}
			w.fail(baseName(dir), dir, asListingError(dir, err))
			return false
		}
		if w.canceled() {
			return true
		}

		p := JoinPath(dir, entry.Name)
		switch entry.Kind {
		case KindFolder:
			if stop := w.enter(entry, p, depth+1); stop {
				return true
			}
		case KindFile:
			w.file(entry, p)
		default:
			w.out.FilesSkipped++
			w.log.Debug("skipping entry of unknown kind", zap.String("path", p))
		}
	}
	return false
}

func (w *walker) enter(entry Entry, p string, depth int) bool {
	key := NormalizePath(p)
	if _, seen := w.visited[key]; seen {
		w.fail(entry.Name, p, fmt.Errorf("%w: %q already visited", ErrCycleDetected, key))
		return false
	}
	if depth > w.req.MaxDepth {
		w.fail(entry.Name, p, fmt.Errorf("%w: depth %d exceeds limit %d", ErrCycleDetected, depth, w.req.MaxDepth))
		return false
	}
	w.visited[key] = struct{}{}

	w.out.FoldersEntered++
	w.log.Info("entering folder", zap.String("path", p))
	return w.walk(key, depth)
}

func (w *walker) file(entry Entry, p string) {
	if !w.req.Select(entry.Name) {
		w.out.FilesSkipped++
		w.log.Debug("skipping file", zap.String("path", p))
		return
	}

	prev, dup := w.fetched[entry.Name]
	if dup && w.req.Collision == CollisionReject {
		w.fail(entry.Name, p, &FetchError{
			Name: entry.Name,
			Path: p,
			Err:  fmt.Errorf("%w: already fetched from %q", ErrNameCollision, prev),
		})
		return
	}

	if entry.Locator == "" {
		w.fail(entry.Name, p, &FetchError{Name: entry.Name, Path: p, Err: errMissingLocator})
		return
	}

	w.log.Info("fetching file", zap.String("path", p), zap.String("dest", w.req.Destination))
	if err := w.sink.Store(w.ctx, w.cred, entry.Locator, w.req.Destination, entry.Name); err != nil {
		if w.canceled() {
			w.log.Info("fetch interrupted", zap.String("path", p))
			return
		}
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{Name: entry.Name, Path: p, Err: err}
		}
		w.fail(entry.Name, p, err)
		return
	}

	if dup {
		w.out.Overwritten++
		w.log.Warn("fetched file replaced an earlier one",
			zap.String("name", entry.Name),
			zap.String("previous", prev),
			zap.String("path", p),
		)
	}
	w.fetched[entry.Name] = p
	w.out.FilesFetched++
}

func (w *walker) fail(name, p string, err error) {
	f := Failure{Name: name, Path: p, Err: err}
	w.out.Failures = append(w.out.Failures, f)
	w.log.Warn("sync failure", zap.String("path", p), zap.String("kind", f.Kind()), zap.Error(err))
}

func (w *walker) canceled() bool {
	if w.out.Canceled {
		return true
	}
	if w.ctx.Err() != nil {
		w.out.Canceled = true
	}
	return w.out.Canceled
}

func asListingError(dir string, err error) error {
	var le *ListingError
	if errors.As(err, &le) {
		return err
	}
	return &ListingError{Path: dir, Err: err}
}
