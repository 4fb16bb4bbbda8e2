package engine

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"

	"lidarflow/internal/tactile"
)

// ValidCores are the core counts the tools accept for -cores.
var ValidCores = []int{1, 2, 4, 8, 16, 32}

// DefaultCores is used when no core count is configured.
const DefaultCores = 16

// ValidateCores reports whether n is one of ValidCores.
func ValidateCores(n int) error {
	for _, c := range ValidCores {
		if n == c {
			return nil
		}
	}
	return fmt.Errorf("invalid core count %d (valid: %v)", n, ValidCores)
}

// DefaultSuffix is the executable suffix of the current platform.
func DefaultSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// Engine resolves tools inside the LAStools bin directory and builds the
// argument vector for an invocation.
type Engine struct {
	Dir    string
	Suffix string
	Format Format
	Cores  int
}

// Binary returns the path of tool inside the engine directory.
func (e *Engine) Binary(tool Tool) string {
	return filepath.Join(e.Dir, string(tool)+e.Suffix)
}

// Command builds the process to run inv over the manifest, writing into
// outDir. The argument order is -lof, -cores, the invocation parameters,
// then -odir and the output format switch.
func (e *Engine) Command(inv Invocation, manifestPath, outDir string) tactile.Command {
	args := []string{"-lof", manifestPath}
	if !inv.NoCores && e.Cores > 0 {
		args = append(args, "-cores", strconv.Itoa(e.Cores))
	}
	args = append(args, inv.Args()...)
	if !inv.InPlace {
		args = append(args, "-odir", outDir)
		format := e.Format
		if format == "" {
			format = LAS
		}
		args = append(args, format.Flag())
	}
	return tactile.Command{
		Binary:    e.Binary(inv.Tool),
		Arguments: args,
		Tags:      map[string]string{"tool": string(inv.Tool)},
	}
}
