package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// confirm prints message and asks for yes/no. Anything but "y" or "yes"
// declines, including EOF.
func confirm(in io.Reader, out io.Writer, message string) bool {
	fmt.Fprintln(out, message)
	fmt.Fprint(out, "Are you sure? (yes/no): ")

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
