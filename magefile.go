//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

func Build() error {
	mg.Deps(BuildImager, BuildSpectrum)
	fmt.Println("Compilation finished")
	return nil
}

// goCommand runs the go tool with the cgo flags needed by the HDF5 bindings.
func goCommand(args ...string) *exec.Cmd {
	ldflags := os.Getenv("CGO_LDFLAGS")
	cflags := os.Getenv("CGO_CFLAGS")
	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=1",
		fmt.Sprintf("CGO_LDFLAGS=%s", ldflags),
		fmt.Sprintf("CGO_CFLAGS=%s", cflags))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

func BuildImager() error {
	fmt.Println("Building tpx3image executable...")
	return goCommand("build", "-o", "./bin/tpx3image", "./tpx3image").Run()
}

func BuildSpectrum() error {
	fmt.Println("Building tpx3spectrum executable...")
	return goCommand("build", "-o", "./bin/tpx3spectrum", "./tpx3spectrum").Run()
}

func Test() error {
	fmt.Println("Running tests...")
	return goCommand("test", "./...").Run()
}
