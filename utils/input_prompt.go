package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/meysamhadeli/gitshape/constants/lipgloss"
)

// ConfirmPrompt asks a yes/no question on out and reads the answer from reader.
// Anything but "y" or "yes" is a no, as is end of input.
func ConfirmPrompt(reader *bufio.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprint(out, lipgloss.BlueSky.Render(question+" [y/N] > "))

	answer, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("error reading input: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
