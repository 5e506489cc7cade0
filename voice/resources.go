package voice

import (
	"fmt"
	"os"
	"sync"
)

// Resources tracks temporary files handed out for local playback. Every
// registered file must be released; Outstanding reports the ones that are
// not.
type Resources struct {
	dir string

	mu    sync.Mutex
	paths map[string]struct{}
}

// NewResources stores files under dir, or the system temp dir when empty.
func NewResources(dir string) *Resources {
	return &Resources{dir: dir, paths: make(map[string]struct{})}
}

// Register writes data to a new temp file and returns its path.
func (r *Resources) Register(data []byte, ext string) (string, error) {
	f, err := os.CreateTemp(r.dir, "traductor-*."+ext)
	if err != nil {
		return "", fmt.Errorf("creating playback file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing playback file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	r.mu.Lock()
	r.paths[path] = struct{}{}
	r.mu.Unlock()
	return path, nil
}

// Release removes one registered file. Unknown paths are ignored.
func (r *Resources) Release(path string) {
	r.mu.Lock()
	_, ok := r.paths[path]
	delete(r.paths, path)
	r.mu.Unlock()
	if ok {
		os.Remove(path)
	}
}

func (r *Resources) ReleaseAll() {
	r.mu.Lock()
	paths := r.paths
	r.paths = make(map[string]struct{})
	r.mu.Unlock()
	for p := range paths {
		os.Remove(p)
	}
}

func (r *Resources) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}
