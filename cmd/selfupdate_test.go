package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewSelfUpdateCmd(t *testing.T) {
	cmd := newSelfUpdateCmd()

	if cmd.Use != "self-update" {
		t.Errorf("Expected Use to be 'self-update', got %s", cmd.Use)
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Error("Expected Short and Long descriptions to be set")
	}
	if cmd.RunE == nil {
		t.Error("Expected RunE function to be set")
	}
}

func TestRunSelfUpdate_RefusesDevelopmentBuilds(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	for _, v := range []string{"dev", ""} {
		t.Run("version "+v, func(t *testing.T) {
			rootCmd.Version = v
			err := runSelfUpdate(nil, nil)
			if err == nil {
				t.Fatal("Expected error for development version")
			}
			if !strings.Contains(err.Error(), "cannot self-update a development version") {
				t.Errorf("Expected specific error message, got: %s", err.Error())
			}
		})
	}
}

func TestSelfUpdateCommandHelp(t *testing.T) {
	cmd := newSelfUpdateCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Error executing self-update help: %v", err)
	}
	if !strings.Contains(buf.String(), "Checks for the latest release of stackctl") {
		t.Errorf("Help output should contain long description. Got: %q", buf.String())
	}
}

func TestGithubRepoSlug(t *testing.T) {
	if githubRepoSlug != "platformkit/stackctl" {
		t.Errorf("Expected githubRepoSlug to be platformkit/stackctl, got %s", githubRepoSlug)
	}
}
