package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/moonseeker1/agent-manage/cmd/console/ui"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	base := flag.String("server", "http://127.0.0.1:9400", "Backend base URL")
	flag.Parse()

	p := tea.NewProgram(ui.NewRootModel(*base), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "console:", err)
		os.Exit(1)
	}
}
