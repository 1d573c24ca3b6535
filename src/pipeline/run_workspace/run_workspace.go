package run_workspace

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/everyinstrument/everyinstrument-be/src/shared/lib/cerr"
	"github.com/everyinstrument/everyinstrument-be/src/shared/lib/working_dir"
	stementity "github.com/everyinstrument/everyinstrument-be/src/shared/stem/entity"
)

// Manager owns the cache root: it hands out per-key workspaces, serializes
// runs that target the same key, and is the only component allowed to
// delete a workspace.
type Manager struct {
	baseDir  working_dir.WorkingDir
	keepLast int

	locksMutex sync.Mutex
	keyLocks   map[string]*keyLock
}

type keyLock struct {
	mutex sync.Mutex
	refs  int
}

func NewManager(baseDirStr string, keepLast int) (*Manager, error) {
	baseDir, err := working_dir.NewWorkingDir(baseDirStr)
	if err != nil {
		return nil, cerr.Wrap(err).Error("Failed to create cache base dir")
	}

	return &Manager{
		baseDir:  baseDir,
		keepLast: keepLast,
		keyLocks: map[string]*keyLock{},
	}, nil
}

func (m *Manager) BaseDir() string {
	return m.baseDir.Root()
}

// Ensure creates the workspace directory for key if it is absent. Calling
// it again for the same key returns the same handle without touching any
// existing content.
func (m *Manager) Ensure(key string) (RunWorkspace, error) {
	root := filepath.Join(m.baseDir.Root(), key)
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return RunWorkspace{}, cerr.Field("workspace_root", root).
			Wrap(err).Error("Failed to create run workspace")
	}

	return RunWorkspace{key: key, root: root}, nil
}

// LockKey blocks until no other run holds the given cache key and returns
// the unlock function. Runs for different keys proceed independently.
func (m *Manager) LockKey(key string) func() {
	m.locksMutex.Lock()
	lock, ok := m.keyLocks[key]
	if !ok {
		lock = &keyLock{}
		m.keyLocks[key] = lock
	}
	lock.refs++
	m.locksMutex.Unlock()

	lock.mutex.Lock()

	return func() {
		lock.mutex.Unlock()

		m.locksMutex.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(m.keyLocks, key)
		}
		m.locksMutex.Unlock()
	}
}

// EvictStale removes every run directory beyond the keepLast most recently
// modified ones. Removal is best effort - one undeletable directory must
// not abort the sweep for the others. Keys in excludeKeys are never
// deleted, so an in-flight run can exempt its own workspace. Keys whose
// lock is currently held belong to other in-flight runs and are exempt
// regardless of workspace age.
func (m *Manager) EvictStale(excludeKeys ...string) {
	excluded := map[string]bool{}
	for _, key := range excludeKeys {
		excluded[key] = true
	}

	m.locksMutex.Lock()
	for key := range m.keyLocks {
		excluded[key] = true
	}
	m.locksMutex.Unlock()

	entries, err := os.ReadDir(m.baseDir.Root())
	if err != nil {
		log.WithField("base_dir", m.baseDir.Root()).
			Warn("Failed to list cache root for eviction")
		return
	}

	type runDir struct {
		name    string
		modTime time.Time
	}

	runDirs := []runDir{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		runDirs = append(runDirs, runDir{name: entry.Name(), modTime: info.ModTime()})
	}

	sort.Slice(runDirs, func(i int, j int) bool {
		return runDirs[i].modTime.After(runDirs[j].modTime)
	})

	for i := m.keepLast; i < len(runDirs); i++ {
		if excluded[runDirs[i].name] {
			continue
		}

		stalePath := filepath.Join(m.baseDir.Root(), runDirs[i].name)
		if err := os.RemoveAll(stalePath); err != nil {
			log.WithField("workspace", stalePath).
				Warn("Failed to remove stale workspace, skipping")
			continue
		}

		log.WithField("workspace", stalePath).Info("Evicted stale workspace")
	}
}

// RunWorkspace is the directory tree holding every artifact of one run.
// The layout is owned by the pipeline - callers only see the stem paths
// exposed through the mapped StemSet.
type RunWorkspace struct {
	key  string
	root string
}

func (w RunWorkspace) Key() string {
	return w.key
}

func (w RunWorkspace) Root() string {
	return w.root
}

func (w RunWorkspace) OriginalPath(filename string) string {
	return filepath.Join(w.root, "original-upload"+filepath.Ext(filename))
}

func (w RunWorkspace) InputWAVPath() string {
	return filepath.Join(w.root, "input.wav")
}

func (w RunWorkspace) SeparationDir(engine string) string {
	return filepath.Join(w.root, "separation", engine)
}

func (w RunWorkspace) CleanInstrumentalPath() string {
	return filepath.Join(w.root, "separation", "post", "instrumental_clean.wav")
}

func (w RunWorkspace) ExportsDir() string {
	return filepath.Join(w.root, "exports")
}

func (w RunWorkspace) ExportPath(role stementity.StemRole, format stementity.OutputFormat) string {
	return filepath.Join(w.ExportsDir(), string(role)+"."+string(format))
}

func (w RunWorkspace) ArchivePath() string {
	return filepath.Join(w.ExportsDir(), "stems.zip")
}

func (w RunWorkspace) ManifestPath() string {
	return filepath.Join(w.root, "result.json")
}

// Touch refreshes the workspace mtime so that an active run stays at the
// front of the eviction order.
func (w RunWorkspace) Touch() {
	now := time.Now()
	_ = os.Chtimes(w.root, now, now)
}
