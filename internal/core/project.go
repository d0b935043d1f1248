package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DirName is the per-project directory.
	DirName = ".lounge"
	// ConfigFile is the project config file inside DirName.
	ConfigFile = "config.yaml"
	// DBFile is the default SQLite database inside DirName.
	DBFile = "lounge.db"
)

// Project represents a lounge project directory.
type Project struct {
	Root string
	Dir  string
}

// ConfigPath returns the project config path.
func (p Project) ConfigPath() string {
	return filepath.Join(p.Dir, ConfigFile)
}

// DBPath returns the default SQLite database path.
func (p Project) DBPath() string {
	return filepath.Join(p.Dir, DBFile)
}

// ErrNotInitialized is returned when no .lounge directory is found.
var ErrNotInitialized = errors.New("not initialized. Run 'lounge init' first")

// DiscoverProject walks up from startDir to find a .lounge directory.
func DiscoverProject(startDir string) (Project, error) {
	current := startDir
	if current == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Project{}, err
		}
		current = cwd
	}
	current, err := filepath.Abs(current)
	if err != nil {
		return Project{}, err
	}

	for {
		dir := filepath.Join(current, DirName)
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			return Project{Root: current, Dir: dir}, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return Project{}, ErrNotInitialized
		}
		current = parent
	}
}

// InitProject creates the .lounge directory at dir and writes config as
// the initial config file. With force an existing project is reset.
func InitProject(dir string, config []byte, force bool) (Project, error) {
	root := dir
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Project{}, err
		}
		root = cwd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return Project{}, err
	}

	project := Project{Root: root, Dir: filepath.Join(root, DirName)}
	if info, err := os.Stat(project.Dir); err == nil && info.IsDir() && !force {
		return Project{}, fmt.Errorf("already initialized. Use --force to reinitialize")
	}
	if err := os.MkdirAll(project.Dir, 0o755); err != nil {
		return Project{}, err
	}
	EnsureGitignore(project.Dir)

	if force {
		for _, name := range []string{DBFile, DBFile + "-wal", DBFile + "-shm"} {
			if err := os.Remove(filepath.Join(project.Dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return Project{}, err
			}
		}
	}
	if len(config) > 0 {
		if err := os.WriteFile(project.ConfigPath(), config, 0o644); err != nil {
			return Project{}, err
		}
	}
	return project, nil
}

// EnsureGitignore makes sure .lounge/.gitignore ignores the database files.
func EnsureGitignore(dir string) {
	gitignore := filepath.Join(dir, ".gitignore")
	entries := []string{"*.db", "*.db-wal", "*.db-shm"}

	data, err := os.ReadFile(gitignore)
	if err != nil {
		_ = os.WriteFile(gitignore, []byte(strings.Join(entries, "\n")+"\n"), 0o644)
		return
	}
	content := string(data)

	lines := map[string]bool{}
	for _, line := range strings.Split(content, "\n") {
		lines[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, entry := range entries {
		if !lines[entry] {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return
	}
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += strings.Join(missing, "\n") + "\n"
	_ = os.WriteFile(gitignore, []byte(content), 0o644)
}
