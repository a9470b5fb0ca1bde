package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/maneesh/buildmanager/internal/apperr"
	"golang.org/x/term"
)

// confirmer asks one yes/no question before a destructive operation.
type confirmer struct {
	in          io.Reader
	out         io.Writer
	interactive bool
	assumeYes   bool
}

func newConfirmer(assumeYes bool) confirmer {
	return confirmer{
		in:          os.Stdin,
		out:         os.Stderr,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
		assumeYes:   assumeYes,
	}
}

// confirm returns nil when the user accepted. Without a terminal it refuses
// unless --yes was given.
func (c confirmer) confirm(question string) error {
	if c.assumeYes {
		return nil
	}
	if !c.interactive {
		return apperr.New(apperr.KindValidation, "confirm", "refusing without a terminal; pass --yes")
	}
	fmt.Fprintf(c.out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && line == "" {
		return apperr.New(apperr.KindValidation, "confirm", "cancelled")
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	}
	return apperr.New(apperr.KindValidation, "confirm", "cancelled")
}

func folderDeleteQuestion(name string, files int) string {
	switch files {
	case 0:
		return fmt.Sprintf("Delete folder %q?", name)
	case 1:
		return fmt.Sprintf("Delete folder %q and the 1 file inside it?", name)
	default:
		return fmt.Sprintf("Delete folder %q and the %d files inside it?", name, files)
	}
}
