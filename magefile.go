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
	mg.Deps(BuildTowerBackground)
	fmt.Println("Compilation finished")
	return nil
}

// hdf5 needs cgo; CGO_LDFLAGS / CGO_CFLAGS point to the local installation.
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

func BuildTowerBackground() error {
	fmt.Println("Building towerbackground executable...")
	return goCommand("build", "-o", "./bin/towerbackground", "./towerbackground").Run()
}

func Test() error {
	fmt.Println("Running tests...")
	return goCommand("test", "./...").Run()
}
