package wc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"merge-engine/core/repos"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultAdminDir is the name of the admin area under the working-copy root.
const DefaultAdminDir = ".merge"

const (
	entriesFile   = "entries.yaml"
	lockFile      = "lock"
	entriesFormat = 1
)

type record struct {
	Kind         string          `yaml:"kind"`
	Schedule     string          `yaml:"schedule,omitempty"`
	URL          string          `yaml:"url"`
	Revision     int64           `yaml:"revision"`
	CopyFrom     *repos.Location `yaml:"copy_from,omitempty"`
	Props        repos.Props     `yaml:"props,omitempty"`
	TextConflict bool            `yaml:"text_conflict,omitempty"`
	PropConflict bool            `yaml:"prop_conflict,omitempty"`
}

type entries struct {
	Format  int                `yaml:"format"`
	Entries map[string]*record `yaml:"entries"`
}

// Disk is a working copy stored on an afero filesystem.
type Disk struct {
	fs    afero.Fs
	root  string
	admin string

	mu      sync.Mutex
	records map[string]*record
	flock   *flock.Flock
	locked  bool
}

// Option configures a Disk.
type Option func(*Disk)

// WithAdminDir overrides the admin area name.
func WithAdminDir(name string) Option {
	return func(d *Disk) {
		if name != "" {
			d.admin = name
		}
	}
}

// Open loads an existing working copy rooted at root.
func Open(fsys afero.Fs, root string, opts ...Option) (*Disk, error) {
	d := newDisk(fsys, root, opts)
	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

// Create initializes an empty working copy at root.
func Create(fsys afero.Fs, root string, opts ...Option) (*Disk, error) {
	d := newDisk(fsys, root, opts)
	if err := fsys.MkdirAll(d.adminPath(""), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create admin area: %w", err)
	}
	if err := d.save(); err != nil {
		return nil, err
	}
	return d, nil
}

func newDisk(fsys afero.Fs, root string, opts []Option) *Disk {
	d := &Disk{fs: fsys, root: root, admin: DefaultAdminDir, records: map[string]*record{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Root returns the working-copy root directory.
func (d *Disk) Root() string {
	return d.root
}

// AdminDir returns the admin area name.
func (d *Disk) AdminDir() string {
	return d.admin
}

// ReadLocal returns the node at p.
func (d *Disk) ReadLocal(ctx context.Context, p string) (*Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p = cleanPath(p)
	if d.isAdmin(p) {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}

	info, err := d.fs.Stat(d.abs(p))
	onDisk := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", p, err)
	}

	rec := d.records[p]
	if rec == nil && !onDisk {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}

	e := &Entry{Path: p, Status: StatusUnversioned}
	if rec != nil {
		if err := fillFromRecord(e, rec); err != nil {
			return nil, fmt.Errorf("entry %s: %w", p, err)
		}
	} else {
		e.Kind = kindOf(info)
	}

	if onDisk && kindOf(info) == e.Kind {
		if e.Kind == repos.KindFile {
			if e.Content, err = afero.ReadFile(d.fs, d.abs(p)); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", p, err)
			}
		}
	} else if rec != nil && e.Status != StatusDeleted {
		e.Status = StatusMissing
	}

	if e.Kind == repos.KindDir {
		if e.Children, err = d.children(p, onDisk && info.IsDir()); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// WriteLocal stores e at p. Adding over a node scheduled for deletion
// schedules a replacement.
func (d *Disk) WriteLocal(ctx context.Context, p string, e *Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p = cleanPath(p)
	if err := d.write(p, e); err != nil {
		return err
	}
	return d.save()
}

// RemoveLocal schedules p and its descendants for deletion and removes them
// from disk. Nodes that were only scheduled for addition are forgotten.
func (d *Disk) RemoveLocal(ctx context.Context, p string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p = cleanPath(p)
	for q, rec := range d.records {
		if !within(q, p) {
			continue
		}
		if rec.Schedule == StatusAdded.String() {
			delete(d.records, q)
			continue
		}
		rec.Schedule = StatusDeleted.String()
		rec.TextConflict, rec.PropConflict = false, false
	}

	if err := d.fs.RemoveAll(d.abs(p)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", p, err)
	}
	return d.save()
}

// WriteSidecar writes an unversioned file at p.
func (d *Disk) WriteSidecar(ctx context.Context, p string, content []byte, appendTo bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	full := d.abs(cleanPath(p))
	if err := d.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", p, err)
	}

	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendTo {
		flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := d.fs.OpenFile(full, flag, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", p, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return f.Close()
}

// Versioned lists the versioned paths not scheduled for deletion.
func (d *Disk) Versioned(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []string
	for p, rec := range d.records {
		if rec.Schedule != StatusDeleted.String() {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Lock takes the session lock and reloads the records.
func (d *Disk) Lock(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.locked {
		return ErrLockContention
	}

	lockPath := d.adminPath(lockFile)
	if _, ok := d.fs.(*afero.OsFs); ok {
		fl := flock.New(lockPath)
		acquired, err := fl.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire lock (pid %d): %w", os.Getpid(), err)
		}
		if !acquired {
			return ErrLockContention
		}
		d.flock = fl
	} else {
		f, err := d.fs.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			return ErrLockContention
		}
		if err != nil {
			return fmt.Errorf("failed to create lock file: %w", err)
		}
		fmt.Fprintf(f, "%d\n", os.Getpid())
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write lock file: %w", err)
		}
	}
	d.locked = true

	if err := d.loadLocked(); err != nil {
		_ = d.release()
		return err
	}
	return nil
}

// Unlock releases the session lock. Unlocking an unlocked working copy is a no-op.
func (d *Disk) Unlock(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.release()
}

func (d *Disk) release() error {
	if !d.locked {
		return nil
	}
	d.locked = false

	if d.flock != nil {
		fl := d.flock
		d.flock = nil
		return fl.Unlock()
	}
	if err := d.fs.Remove(d.adminPath(lockFile)); err != nil {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (d *Disk) write(p string, e *Entry) error {
	switch e.Kind {
	case repos.KindFile:
		full := d.abs(p)
		if err := d.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", p, err)
		}
		if err := afero.WriteFile(d.fs, full, e.Content, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", p, err)
		}
	case repos.KindDir:
		if err := d.fs.MkdirAll(d.abs(p), 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", p, err)
		}
	default:
		return fmt.Errorf("cannot write %s: no kind", p)
	}

	status := e.Status
	switch status {
	case StatusMissing, StatusUnversioned:
		status = StatusNormal
	case StatusAdded:
		if prev := d.records[p]; prev != nil && prev.Schedule == StatusDeleted.String() {
			status = StatusReplaced
		}
	}

	schedule := ""
	if status != StatusNormal {
		schedule = status.String()
	}
	d.records[p] = &record{
		Kind:         e.Kind.String(),
		Schedule:     schedule,
		URL:          e.URL,
		Revision:     e.Revision,
		CopyFrom:     e.CopyFrom,
		Props:        e.Props.Clone(),
		TextConflict: e.TextConflicted,
		PropConflict: e.PropConflicted,
	}
	return nil
}

func (d *Disk) children(p string, onDisk bool) ([]string, error) {
	names := map[string]struct{}{}
	for q := range d.records {
		if q != "" && parentOf(q) == p {
			names[path.Base(q)] = struct{}{}
		}
	}

	if onDisk {
		infos, err := afero.ReadDir(d.fs, d.abs(p))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", p, err)
		}
		for _, info := range infos {
			child := joinPath(p, info.Name())
			if !d.isAdmin(child) {
				names[info.Name()] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (d *Disk) load() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadLocked()
}

func (d *Disk) loadLocked() error {
	data, err := afero.ReadFile(d.fs, d.adminPath(entriesFile))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", d.root, ErrNotWorkingCopy)
	}
	if err != nil {
		return fmt.Errorf("failed to read entries: %w", err)
	}

	var file entries
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse entries: %w", err)
	}
	if file.Entries == nil {
		file.Entries = map[string]*record{}
	}
	d.records = file.Entries
	return nil
}

func (d *Disk) save() error {
	data, err := yaml.Marshal(entries{Format: entriesFormat, Entries: d.records})
	if err != nil {
		return fmt.Errorf("failed to encode entries: %w", err)
	}
	if err := afero.WriteFile(d.fs, d.adminPath(entriesFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write entries: %w", err)
	}
	return nil
}

func (d *Disk) abs(p string) string {
	if p == "" {
		return d.root
	}
	return filepath.Join(d.root, filepath.FromSlash(p))
}

func (d *Disk) adminPath(name string) string {
	return filepath.Join(d.root, d.admin, name)
}

func (d *Disk) isAdmin(p string) bool {
	return p == d.admin || strings.HasPrefix(p, d.admin+"/")
}

func fillFromRecord(e *Entry, rec *record) error {
	kind, err := repos.ParseKind(rec.Kind)
	if err != nil {
		return err
	}
	status, err := parseSchedule(rec.Schedule)
	if err != nil {
		return err
	}
	e.Kind = kind
	e.Status = status
	e.URL = rec.URL
	e.Revision = rec.Revision
	e.CopyFrom = rec.CopyFrom
	e.Props = rec.Props.Clone()
	e.TextConflicted = rec.TextConflict
	e.PropConflicted = rec.PropConflict
	return nil
}

func kindOf(info os.FileInfo) repos.Kind {
	if info == nil {
		return repos.KindNone
	}
	if info.IsDir() {
		return repos.KindDir
	}
	return repos.KindFile
}

func cleanPath(p string) string {
	p = path.Clean("/" + filepath.ToSlash(p))
	return strings.TrimPrefix(p, "/")
}

func parentOf(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func within(p, base string) bool {
	return base == "" || p == base || strings.HasPrefix(p, base+"/")
}
