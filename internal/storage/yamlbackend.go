package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/valter-silva-au/taskgraph/pkg/models"
	"gopkg.in/yaml.v3"
)

const taskFileVersion = "1.0"

// taskFile is the top-level structure of tasks.yaml.
type taskFile struct {
	Version string        `yaml:"version"`
	Tasks   []models.Task `yaml:"tasks"`
}

// backupFile mirrors the live record shape with a header.
type backupFile struct {
	models.Backup `yaml:",inline"`
	Tasks         []models.Task `yaml:"tasks"`
}

type yamlBackend struct {
	fs        afero.Fs
	path      string
	backupDir string
}

// NewYAMLBackend stores tasks in a single YAML file at path and backups as
// one YAML file each under backupDir.
func NewYAMLBackend(fsys afero.Fs, path, backupDir string) Backend {
	return &yamlBackend{fs: fsys, path: path, backupDir: backupDir}
}

func (b *yamlBackend) Load() ([]models.Task, error) {
	data, err := afero.ReadFile(b.fs, b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading tasks: %w", err)
	}

	var tf taskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("loading tasks: parsing YAML: %w", err)
	}
	return tf.Tasks, nil
}

func (b *yamlBackend) Save(tasks []models.Task) error {
	data, err := yaml.Marshal(&taskFile{Version: taskFileVersion, Tasks: nonNil(tasks)})
	if err != nil {
		return fmt.Errorf("saving tasks: marshaling YAML: %w", err)
	}
	if err := writeFileAtomic(b.fs, b.path, data); err != nil {
		return fmt.Errorf("saving tasks: %w", err)
	}
	return nil
}

func (b *yamlBackend) backupPath(id string) string {
	return filepath.Join(b.backupDir, id+".yaml")
}

func (b *yamlBackend) WriteBackup(bk models.Backup, tasks []models.Task) error {
	data, err := yaml.Marshal(&backupFile{Backup: bk, Tasks: nonNil(tasks)})
	if err != nil {
		return fmt.Errorf("writing backup %s: marshaling YAML: %w", bk.ID, err)
	}
	if err := writeFileAtomic(b.fs, b.backupPath(bk.ID), data); err != nil {
		return fmt.Errorf("writing backup %s: %w", bk.ID, err)
	}
	return nil
}

func (b *yamlBackend) readBackupFile(id string) (*backupFile, error) {
	data, err := afero.ReadFile(b.fs, b.backupPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, models.NotFoundError(id)
		}
		return nil, fmt.Errorf("reading backup %s: %w", id, err)
	}
	var bf backupFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("reading backup %s: parsing YAML: %w", id, err)
	}
	return &bf, nil
}

func (b *yamlBackend) ListBackups() ([]models.Backup, error) {
	entries, err := afero.ReadDir(b.fs, b.backupDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing backups: %w", err)
	}

	var out []models.Backup
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		bf, err := b.readBackupFile(strings.TrimSuffix(name, ".yaml"))
		if err != nil {
			return nil, fmt.Errorf("listing backups: %w", err)
		}
		out = append(out, bf.Backup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (b *yamlBackend) ReadBackup(id string) ([]models.Task, error) {
	bf, err := b.readBackupFile(id)
	if err != nil {
		return nil, err
	}
	return bf.Tasks, nil
}

func (b *yamlBackend) DeleteBackup(id string) error {
	if err := b.fs.Remove(b.backupPath(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.NotFoundError(id)
		}
		return fmt.Errorf("deleting backup %s: %w", id, err)
	}
	return nil
}

func (b *yamlBackend) Close() error { return nil }

func nonNil(tasks []models.Task) []models.Task {
	if tasks == nil {
		return []models.Task{}
	}
	return tasks
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never observe a partial file.
func writeFileAtomic(fsys afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fsys, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = fsys.Remove(tmpPath) }() // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := fsys.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file to %s: %w", path, err)
	}
	return nil
}
