package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/alergo/internal/model"
)

// errQuit is returned by the prompts when input ends.
var errQuit = errors.New("input closed")

// readLine reads one trimmed line. A final line without a newline is
// still returned; errQuit follows once input is exhausted.
func (m *Menu) readLine() (string, error) {
	line, err := m.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", errQuit
		}
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (m *Menu) ask(prompt string) (string, error) {
	fmt.Fprint(m.out, prompt)
	return m.readLine()
}

func (m *Menu) println(a ...any) {
	fmt.Fprintln(m.out, a...)
}

func (m *Menu) printf(format string, a ...any) {
	fmt.Fprintf(m.out, format, a...)
}

// askRequired repeats the prompt until a non-empty answer is given.
func (m *Menu) askRequired(prompt, field string) (string, error) {
	for {
		v, err := m.ask(prompt)
		if err != nil || v != "" {
			return v, err
		}
		m.printf("%s cannot be empty.\n", field)
	}
}

// askInt reads a whole number. With a current value, an empty answer keeps
// it. Without one, an empty answer returns nil unless required.
func (m *Menu) askInt(label string, current *int, required bool) (*int, error) {
	for {
		var prompt string
		if current != nil {
			prompt = fmt.Sprintf("%s (current: %d, press Enter to keep): ", label, *current)
		} else {
			prompt = label + ": "
		}

		v, err := m.ask(prompt)
		if err != nil {
			return nil, err
		}
		if v == "" {
			if current != nil {
				return current, nil
			}
			if !required {
				return nil, nil
			}
			m.println("This field is required.")
			continue
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			m.println("Invalid input. Please enter a whole number.")
			continue
		}
		return &n, nil
	}
}

// askDate reads an optional YYYY-MM-DD date. With a current value, an
// empty answer keeps it; otherwise it skips the field.
func (m *Menu) askDate(label string, current *time.Time) (*time.Time, error) {
	for {
		var prompt string
		if current != nil {
			prompt = fmt.Sprintf("%s (YYYY-MM-DD, current: %s, press Enter to keep): ", label, model.FormatDate(*current))
		} else {
			prompt = label + " (YYYY-MM-DD, press Enter to skip): "
		}

		v, err := m.ask(prompt)
		if err != nil {
			return nil, err
		}
		if v == "" {
			return current, nil
		}

		d, err := model.ParseOptionalDate(v)
		if err != nil {
			m.println("Invalid date format. Please use YYYY-MM-DD or leave blank.")
			continue
		}
		return d, nil
	}
}

// askKeep reads a text field, keeping current on an empty answer.
func (m *Menu) askKeep(label, current string) (string, error) {
	v, err := m.ask(fmt.Sprintf("%s (current: %s): ", label, orNA(current)))
	if err != nil || v == "" {
		return current, err
	}
	return v, nil
}

// askID reads an extract id, reporting a malformed one.
func (m *Menu) askID(prompt string) (int64, bool, error) {
	v, err := m.ask(prompt)
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		m.println("Invalid ID format. Please enter a number.")
		return 0, false, nil
	}
	return id, true, nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
