package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/term"
)

// EndOfText ends multi-line input when typed alone on a line.
const EndOfText = "."

// Prompter handles interactive input.
type Prompter struct {
	reader      *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewPrompter creates a prompter on the process's standard input and output.
func NewPrompter() *Prompter {
	return &Prompter{
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// NewPrompterWith creates a prompter reading in and writing prompts to out.
func NewPrompterWith(in io.Reader, out io.Writer) *Prompter {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &Prompter{
		reader:      bufio.NewReader(in),
		out:         out,
		interactive: interactive,
	}
}

// Interactive reports whether input comes from a terminal.
func (p *Prompter) Interactive() bool {
	return p.interactive
}

// Prompt displays a prompt and reads a line of input. A last line without
// a newline is returned; io.EOF is returned only when nothing was read.
func (p *Prompter) Prompt(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PromptMultiline reads lines until a line holding only EndOfText or the
// end of input. Lines keep their indentation.
func (p *Prompter) PromptMultiline(prompt string) (string, error) {
	fmt.Fprintf(p.out, "%s (end with %q on its own line)\n", prompt, EndOfText)

	var lines []string
	for {
		line, err := p.reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if err != nil && err != io.EOF {
			return "", err
		}
		if strings.TrimSpace(line) == EndOfText {
			break
		}
		if err == io.EOF {
			if line != "" {
				lines = append(lines, line)
			}
			if len(lines) == 0 {
				return "", io.EOF
			}
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

// PromptInt reads an integer in [min, max], asking again on invalid input.
func (p *Prompter) PromptInt(prompt string, min, max int) (int, error) {
	for {
		response, err := p.Prompt(fmt.Sprintf("%s [%d-%d]: ", prompt, min, max))
		if err != nil {
			return 0, err
		}

		n, err := strconv.Atoi(response)
		if err == nil && n >= min && n <= max {
			return n, nil
		}
		fmt.Fprintf(p.out, "Enter a number between %d and %d.\n", min, max)
	}
}

// Confirm prompts for yes/no confirmation.
func (p *Prompter) Confirm(prompt string) (bool, error) {
	response, err := p.Prompt(prompt + " [y/N]: ")
	if err != nil {
		return false, err
	}

	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes", nil
}

// PromptSelect prompts user to select from a list of options.
func (p *Prompter) PromptSelect(prompt string, options []string) (string, error) {
	fmt.Fprintln(p.out, prompt)
	for i, opt := range options {
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, opt)
	}

	for {
		response, err := p.Prompt("Enter number or value: ")
		if err != nil {
			return "", err
		}

		var idx int
		if _, err := fmt.Sscanf(response, "%d", &idx); err == nil {
			if idx >= 1 && idx <= len(options) {
				return options[idx-1], nil
			}
			fmt.Fprintln(p.out, "Invalid selection. Try again.")
			continue
		}

		for _, opt := range options {
			if strings.EqualFold(response, opt) {
				return opt, nil
			}
		}

		fmt.Fprintln(p.out, "Invalid selection. Try again.")
	}
}

// FormatLabel turns a field name into a prompt label:
// "EquipScript" becomes "Equip Script".
func FormatLabel(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(runes[i-1]) ||
			(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
