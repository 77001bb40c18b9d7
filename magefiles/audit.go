//go:build mage

package main

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

// Audit builds the CLI and runs a field-mapping audit across every enabled
// API source. Results land in the audit database under audit/.
func Audit() error {
	mg.Deps(Build)

	cmd := exec.Command(filepath.Join(binDir, binName), "audit", "--all")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
