// Package main provides tests for the lineagebench CLI.
package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/leapstack-labs/lineagebench/internal/cli"
)

func TestVersionCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("version command error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "lineagebench") {
		t.Errorf("version output should contain 'lineagebench', got: %s", output)
	}
}

func TestHelpListsCommands(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help error = %v", err)
	}

	output := buf.String()
	for _, name := range []string{"bench", "lineage", "report", "serve", "clean", "init"} {
		if !strings.Contains(output, name) {
			t.Errorf("help output should list %q, got: %s", name, output)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"explode"})

	if err := cmd.Execute(); err == nil {
		t.Error("expected error for unknown command")
	}
}
