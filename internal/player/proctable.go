package player

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// commLen is the kernel's limit on a process command name (TASK_COMM_LEN
// minus the terminating NUL); /proc/<pid>/stat reports at most this much.
const commLen = 15

// ProcessTable finds live processes by name.
type ProcessTable interface {
	Find(name string) ([]int, error)
}

// ProcScanner reads /proc/<pid>/stat the way pgrep does: a process matches
// when its command name contains name. Names longer than the kernel keeps
// are compared by their first commLen bytes. Zombies and the calling
// process are skipped.
type ProcScanner struct {
	fs   afero.Fs
	root string
	self int
}

var _ ProcessTable = (*ProcScanner)(nil)

// NewProcScanner scans root (normally "/proc") on fs. A nil fs means the OS
// filesystem.
func NewProcScanner(fs afero.Fs, root string) *ProcScanner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if root == "" {
		root = "/proc"
	}
	return &ProcScanner{fs: fs, root: root, self: os.Getpid()}
}

func (p *ProcScanner) Find(name string) ([]int, error) {
	if name == "" {
		return nil, fmt.Errorf("empty process name")
	}

	if len(name) > commLen {
		name = name[:commLen]
	}

	entries, err := afero.ReadDir(p.fs, p.root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.root, err)
	}

	var pids []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid == p.self {
			continue
		}

		// Processes can vanish between ReadDir and here; skip them.
		raw, err := afero.ReadFile(p.fs, filepath.Join(p.root, e.Name(), "stat"))
		if err != nil {
			continue
		}
		comm, state, ok := parseStat(string(raw))
		if !ok || state == "Z" || state == "X" {
			continue
		}
		if strings.Contains(comm, name) {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

// parseStat extracts comm and state from /proc/<pid>/stat:
// "<pid> (<comm>) <state> ...". comm may itself contain spaces and ')'.
func parseStat(s string) (comm, state string, ok bool) {
	open := strings.IndexByte(s, '(')
	closing := strings.LastIndexByte(s, ')')
	if open < 0 || closing < open {
		return "", "", false
	}
	comm = s[open+1 : closing]
	fields := strings.Fields(s[closing+1:])
	if len(fields) == 0 {
		return "", "", false
	}
	return comm, fields[0], true
}
