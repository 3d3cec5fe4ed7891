package ui

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"

	"shiftcast/pkg/errors"
)

var (
	// Check if output supports colors
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	// stdout is where status lines go. Tests swap it.
	stdout io.Writer = os.Stdout

	// Color functions
	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")
)

// colorFunc returns a function that colors text if supported
func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

// ShowHeader displays a formatted header
func ShowHeader(title string) {
	width := 50
	padding := (width - len(title) - 2) / 2
	if padding < 0 {
		padding = 0
	}
	right := width - 2 - padding - len(title)
	if right < 0 {
		right = 0
	}

	fmt.Fprintln(stdout, "\n+"+strings.Repeat("-", width-2)+"+")
	fmt.Fprintf(stdout, "|%s%s%s|\n",
		strings.Repeat(" ", padding),
		ColorBold(title),
		strings.Repeat(" ", right),
	)
	fmt.Fprintln(stdout, "+"+strings.Repeat("-", width-2)+"+")
}

// ShowError displays an error with its code and recovery suggestions.
func ShowError(err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		fmt.Fprintf(stdout, "\n%s %s\n", ColorError("ERROR:"), err.Error())
		if suggestion := getSuggestion(err.Error()); suggestion != "" {
			fmt.Fprintf(stdout, "\n  %s %s\n", ColorInfo("TIP:"), ColorInfo(suggestion))
		}
		return
	}

	fmt.Fprintf(stdout, "\n%s %s\n", ColorError(fmt.Sprintf("ERROR [%s]:", appErr.Code)), appErr.Message)
	if appErr.Cause != nil {
		for _, line := range strings.Split(appErr.Cause.Error(), "\n") {
			fmt.Fprintf(stdout, "  %s\n", ColorDim(line))
		}
	}

	suggestions := appErr.Suggestions
	if len(suggestions) == 0 {
		if s := getSuggestion(err.Error()); s != "" {
			suggestions = []string{s}
		}
	}
	for _, s := range suggestions {
		fmt.Fprintf(stdout, "  %s %s\n", ColorInfo("TIP:"), s)
	}
}

// ShowSuccess displays a success message
func ShowSuccess(message string) {
	fmt.Fprintf(stdout, "%s %s\n", ColorSuccess("SUCCESS:"), message)
}

// ShowWarning displays a warning message
func ShowWarning(message string) {
	fmt.Fprintf(stdout, "%s %s\n", ColorWarning("WARNING:"), ColorWarning(message))
}

// ShowInfo displays an info message
func ShowInfo(message string) {
	fmt.Fprintf(stdout, "%s %s\n", ColorInfo("INFO:"), message)
}

// getSuggestion returns helpful suggestions based on error messages
func getSuggestion(message string) string {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "authentication failed") || strings.Contains(lower, "incorrect username or password"):
		return "Check your username and password, or re-run 'shiftcast setup'"
	case strings.Contains(lower, "connection refused"):
		return "Verify your Snowflake account identifier and network connectivity"
	case strings.Contains(lower, "does not exist"):
		return "Verify the shift sales table and inference UDF exist in the configured database"
	case strings.Contains(lower, "insufficient privileges"):
		return "Ensure your role can read the shift sales table and call the UDF"
	default:
		return ""
	}
}
