package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
)

func NewShellCommand() *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:     "shell",
		Short:   "Run battrack commands interactively",
		GroupID: gAdvanced,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInteractiveShell(cmd, prompt)
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "battrack> ", "shell prompt")

	return cmd
}

func runInteractiveShell(cmd *cobra.Command, prompt string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), "battrack-shell.history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	cmd.Println("Type 'help' for commands, 'exit' to quit.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		done, err := runShellLine(cmd.OutOrStdout(), line)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
		}
		if done {
			return nil
		}
	}
}

// runShellLine executes one shell line as a fresh command tree. It reports
// whether the shell should exit.
func runShellLine(out io.Writer, line string) (bool, error) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false, nil
	case "exit", "quit":
		return true, nil
	}

	args, err := shlex.Split(line)
	if err != nil {
		return false, fmt.Errorf("parse error: %w", err)
	}
	if len(args) == 0 {
		return false, nil
	}
	if args[0] == "shell" {
		return false, fmt.Errorf("already in a shell")
	}

	root := NewCommand()
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		handleCmdError(err)
		return false, err
	}
	return false, nil
}
