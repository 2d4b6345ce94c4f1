package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bluele/gcache"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/archive"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/utils"
)

// Kind names one derived artifact.
type Kind string

const (
	KindRealtime      Kind = "rt_events"
	KindRouteTypes    Kind = "route_types_map"
	KindStopLocations Kind = "stop_location_map"
	KindStopCount     Kind = "stop_count"
	KindFeatures      Kind = "features"
)

// Kinds lists every artifact kind in build order.
var Kinds = []Kind{KindRealtime, KindRouteTypes, KindStopLocations, KindStopCount, KindFeatures}

// Key identifies an artifact.
type Key struct {
	Operator string
	Kind     Kind
}

// Source distinguishes raw downloads.
type Source string

const (
	SourceStatic   Source = "static"
	SourceRealtime Source = "realtime"
)

// State is the freshness of an artifact relative to a requested date.
type State int

const (
	StateMissing State = iota
	StateStale
	StateFresh
)

func (s State) String() string {
	switch s {
	case StateMissing:
		return "MISSING"
	case StateStale:
		return "STALE"
	case StateFresh:
		return "FRESH"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	markerName   = ".last_updated"
	artifactExt  = ".gob.zst"
	downloadsDir = "downloads"
	extractDir   = "extract"
)

// Metrics receives cache outcomes; metrics.Collector implements it.
type Metrics interface {
	CacheResult(kind string, hit bool)
}

// Options tune a Manager.
type Options struct {
	RemoveArchives bool
	// MemoSize is the number of decoded artifacts kept in memory; 0 disables
	// the memo.
	MemoSize int
	Metrics  Metrics
}

// Manager decides between reusing and rebuilding cached artifacts.
type Manager struct {
	root           string
	scope          string
	removeArchives bool
	memo           gcache.Cache
	metrics        Metrics
}

type memoKey struct {
	path string
	date string
}

// New creates the cache root if needed.
func New(root string, opts Options) (*Manager, error) {
	if root == "" {
		return nil, errors.New("cache root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	m := &Manager{root: root, removeArchives: opts.RemoveArchives, metrics: opts.Metrics}
	if opts.MemoSize > 0 {
		m.memo = gcache.New(opts.MemoSize).LRU().Build()
	}
	return m, nil
}

// Root returns the cache root directory.
func (m *Manager) Root() string { return m.root }

// Scoped returns a view of m whose files live under
// <root>/<operator>/<scope>/. Views share the memo and the metrics hook, and
// each scope keeps its own marker.
func (m *Manager) Scoped(scope string) *Manager {
	c := *m
	c.scope = scope
	return &c
}

// Scope returns the scope of the view, "" for the unscoped manager.
func (m *Manager) Scope() string { return m.scope }

// OperatorDir returns the directory holding an operator's files.
func (m *Manager) OperatorDir(operator string) string {
	return filepath.Join(m.root, operator, m.scope)
}

// ArtifactPath returns where key is persisted.
func (m *Manager) ArtifactPath(key Key) string {
	return filepath.Join(m.OperatorDir(key.Operator), string(key.Kind)+artifactExt)
}

// DownloadsDir returns the directory of raw payloads for operator.
func (m *Manager) DownloadsDir(operator string) string {
	return filepath.Join(m.OperatorDir(operator), downloadsDir)
}

// ExtractDir returns the directory of transient extractions for operator.
func (m *Manager) ExtractDir(operator string) string {
	return filepath.Join(m.OperatorDir(operator), extractDir)
}

func (m *Manager) markerPath(operator string) string {
	return filepath.Join(m.OperatorDir(operator), markerName)
}

// LastUpdated returns the date recorded by the last Commit, or "" when the
// operator has never completed a run.
func (m *Manager) LastUpdated(operator string) (string, error) {
	b, err := os.ReadFile(m.markerPath(operator))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read marker: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Fresh reports whether the operator's marker names exactly date.
func (m *Manager) Fresh(operator, date string) bool {
	last, err := m.LastUpdated(operator)
	if err != nil {
		logging.Logf("Warning: %v; treating %s as stale", err, operator)
		return false
	}
	return last == date
}

// State reports the freshness of key for date.
func (m *Manager) State(key Key, date string) State {
	if _, err := os.Stat(m.ArtifactPath(key)); err != nil {
		return StateMissing
	}
	if m.Fresh(key.Operator, date) {
		return StateFresh
	}
	return StateStale
}

func (m *Manager) record(kind Kind, hit bool) {
	if m.metrics != nil {
		m.metrics.CacheResult(string(kind), hit)
	}
}

func (m *Manager) memoGet(k memoKey) (interface{}, bool) {
	if m.memo == nil {
		return nil, false
	}
	v, err := m.memo.Get(k)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (m *Manager) memoSet(k memoKey, v interface{}) {
	if m.memo == nil {
		return
	}
	if err := m.memo.Set(k, v); err != nil {
		logging.Logf("Warning: memo set %s: %v", k.path, err)
	}
}

// GetOrBuild returns the artifact for key when it is fresh for date,
// otherwise runs build and persists its result. force always rebuilds. A
// failed build leaves the previous artifact untouched.
func GetOrBuild[T any](ctx context.Context, m *Manager, key Key, date string, force bool, codec Codec[T], build func(context.Context) (T, error)) (T, error) {
	var zero T
	path := m.ArtifactPath(key)
	mk := memoKey{path: path, date: date}

	if !force {
		if v, ok := m.memoGet(mk); ok {
			if typed, ok := v.(T); ok {
				m.record(key.Kind, true)
				return typed, nil
			}
		}
		if m.State(key, date) == StateFresh {
			v, err := loadFile(codec, path)
			if err == nil {
				m.memoSet(mk, v)
				m.record(key.Kind, true)
				logging.Logf("Loaded cached %s for %s %s", key.Kind, key.Operator, date)
				return v, nil
			}
			logging.Logf("Warning: cached %s unreadable, rebuilding: %v", key.Kind, err)
		}
	}

	m.record(key.Kind, false)
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	v, err := build(ctx)
	if err != nil {
		return zero, err
	}
	if err := writeAtomic(path, func(w io.Writer) error { return codec.Encode(w, v) }); err != nil {
		return zero, fmt.Errorf("persist %s: %w", key.Kind, err)
	}
	m.memoSet(mk, v)
	logging.Logf("Built %s for %s %s", key.Kind, key.Operator, date)
	return v, nil
}

// DownloadPath returns where a raw payload for (operator, source, date) is
// stored.
func (m *Manager) DownloadPath(operator string, source Source, date, ext string) string {
	name := fmt.Sprintf("%s_%s_%s%s", operator, source, utils.DateToken(date), ext)
	return filepath.Join(m.DownloadsDir(operator), name)
}

// Archive persists the payload returned by fetch and returns its path. An
// existing payload is reused without calling fetch unless force is set.
func (m *Manager) Archive(ctx context.Context, operator, date string, source Source, ext string, force bool, fetch func(context.Context) ([]byte, error)) (string, error) {
	path := m.DownloadPath(operator, source, date, ext)
	if !force {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			logging.Logf("Reusing %s download %s", source, filepath.Base(path))
			return path, nil
		}
	}
	data, err := fetch(ctx)
	if err != nil {
		return "", err
	}
	if err := writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return "", fmt.Errorf("store %s download: %w", source, err)
	}
	logging.Logf("Stored %s download %s (%d bytes)", source, filepath.Base(path), len(data))
	return path, nil
}

// Unpack extracts a stored download into the operator's extraction tree.
// Source archives are kept so Archive can reuse them; Commit removes them
// when RemoveArchives is set.
func (m *Manager) Unpack(operator, archivePath string) (string, error) {
	return archive.Unpack(archivePath, m.ExtractDir(operator), false)
}

// Commit records date as the operator's last completed run and removes the
// transient files of that date.
func (m *Manager) Commit(operator, date string) error {
	if err := writeAtomic(m.markerPath(operator), func(w io.Writer) error {
		_, err := io.WriteString(w, date+"\n")
		return err
	}); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	token := utils.DateToken(date)
	if err := removeMatching(m.ExtractDir(operator), token); err != nil {
		return err
	}
	if m.removeArchives {
		if err := removeMatching(m.DownloadsDir(operator), token); err != nil {
			return err
		}
	}
	return nil
}

func removeMatching(dir, token string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}
	for _, e := range entries {
		if !strings.Contains(e.Name(), token) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", e.Name(), err)
		}
	}
	return nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
