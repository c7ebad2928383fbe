package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/huh"
)

// PromptRemote asks for a remote repository URL. Without a terminal on
// stdin it returns "" and does not prompt.
func PromptRemote() (string, error) {
	if !IsTerminal(os.Stdin) {
		return "", nil
	}

	var url string
	err := huh.NewInput().
		Title("Remote repository URL").
		Description("Where other machines pull from. Leave empty to keep history local.").
		Value(&url).
		Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(url), nil
}
