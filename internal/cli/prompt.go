package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// promptConfirm asks a yes/no question on stdin. Anything but y/yes is no.
func promptConfirm(question string) (bool, error) {
	return confirm(os.Stdin, os.Stdout, question)
}

func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)

	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}

	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes", nil
}

// promptString asks for a value, returning def when the answer is empty.
func promptString(reader *bufio.Reader, out io.Writer, label, def string) string {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}
