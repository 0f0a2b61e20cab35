// Package schema renders the cobra command tree as machine-readable JSON so
// wrappers and chat-ops tooling can discover commands and flags without
// parsing help text.
package schema

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type Command struct {
	Path        string    `json:"path"`
	Use         string    `json:"use"`
	Short       string    `json:"short"`
	Flags       []Flag    `json:"flags,omitempty"`
	Subcommands []Command `json:"subcommands,omitempty"`
}

type Flag struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Usage   string `json:"usage"`
	Default string `json:"default,omitempty"`
}

// Describe walks the tree from root to the command named by path (space
// separated, empty for the root) and serializes that subtree.
func Describe(root *cobra.Command, path string) (Command, error) {
	cmd := root
	for _, part := range strings.Fields(path) {
		next := child(cmd, part)
		if next == nil {
			return Command{}, fmt.Errorf("command not found: %s", path)
		}
		cmd = next
	}
	return describe(cmd), nil
}

func child(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func describe(cmd *cobra.Command) Command {
	out := Command{
		Path:  strings.TrimSpace(cmd.CommandPath()),
		Use:   cmd.Use,
		Short: cmd.Short,
	}
	cmd.NonInheritedFlags().VisitAll(func(f *pflag.Flag) {
		out.Flags = append(out.Flags, Flag{
			Name:    f.Name,
			Type:    f.Value.Type(),
			Usage:   f.Usage,
			Default: f.DefValue,
		})
	})
	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "help" {
			continue
		}
		out.Subcommands = append(out.Subcommands, describe(sub))
	}
	return out
}
