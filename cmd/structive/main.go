// Command structive is a template inspector: it compiles a component
// template file and lets you browse the resulting templates, their binding
// records and node paths in a terminal UI.
//
//	structive inspect path/to/component.html
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	structive "github.com/structive/structive-go"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "structive:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 2 && args[0] == "inspect" {
		args = args[1:]
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: structive inspect <template.html>")
	}
	markup, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	registry := structive.NewRegistry()
	rootID, err := registry.Compile(string(markup))
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	m, err := newInspector(args[0], registry, rootID)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
