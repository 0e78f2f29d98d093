package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// confirm prompts y/n on stdout/stdin. When stdin isn't a terminal
// (a CI pipe, a script) it refuses rather than blocking on a read that
// will never resolve the way an interactive operator would expect.
func confirm(prompt string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("refusing to prompt %q: stdin is not a terminal, pass --no-confirm", prompt)
	}

	fmt.Printf("%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
