package cmd

import (
	"testing"
)

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}

	if rootCmd.Use != "reverie" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "reverie")
	}

	// Check for expected subcommands (compare by Name(), not Use which includes args)
	expectedCmds := []string{"run", "config", "dump"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, name := range expectedCmds {
		if !cmdMap[name] {
			t.Errorf("rootCmd is missing subcommand %q", name)
		}
	}
}

func TestConfigCommand_Subcommands(t *testing.T) {
	expected := []string{"show", "init", "path"}
	cmdMap := make(map[string]bool)
	for _, cmd := range configCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, name := range expected {
		if !cmdMap[name] {
			t.Errorf("configCmd is missing subcommand %q", name)
		}
	}
}
