package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Header renders the title bar with the serve URL, mode and the number of
// connected browsers.
type Header struct {
	width   int
	url     string
	mode    string
	clients int
}

// NewHeader creates a new Header.
func NewHeader(mode string) *Header {
	return &Header{
		width: 80,
		mode:  mode,
	}
}

// SetWidth sets the header width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// SetURL sets the address the dev server listens on.
func (h *Header) SetURL(url string) {
	h.url = url
}

// SetClients sets the number of browsers connected for live reload.
func (h *Header) SetClients(n int) {
	h.clients = n
}

// View renders the header.
func (h *Header) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Render("sitepipe")

	mode := lipgloss.NewStyle().
		Foreground(lipgloss.Color("243")).
		Italic(true).
		Render(h.mode)

	url := h.url
	if url == "" {
		url = "starting..."
	}
	addr := lipgloss.NewStyle().
		Foreground(lipgloss.Color("45")).
		Underline(h.url != "").
		Render(url)

	parts := []string{title, "  ", mode, "  ", addr}
	if h.url != "" {
		parts = append(parts, "  ", lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Render(browsers(h.clients)))
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, parts...)

	return lipgloss.NewStyle().
		Width(h.width).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(lipgloss.Color("238")).
		Render(bar)
}

// Height returns the header height in lines.
func (h *Header) Height() int {
	return 2 // title + border
}

func browsers(n int) string {
	if n == 1 {
		return "1 browser"
	}
	return fmt.Sprintf("%d browsers", n)
}
