// Package shell drives an app.App from text commands, one command per line.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cardiocare/cardiocare/internal/app"
	"github.com/cardiocare/cardiocare/internal/nav"
)

var ErrUsage = errors.New("shell: usage")

const helpText = `commands:
  go <location>                 show a page (home, login, new-prediction, ...)
  submit key=value ...          submit the form on the visible page
  approve <id> | reject <id>    handle an appointment request
  select-patient <id> <name>    open a patient's history
  details <prediction id>       show a prediction's inputs and note
  note <prediction id> <text>   save a doctor's note
  logout                        end the session
  scroll <n>                    scroll the page by n lines
  show                          print the visible page again
  help                          print this help
  quit                          leave the shell
`

type Shell struct {
	app    *app.App
	out    io.Writer
	logger zerolog.Logger
}

func New(a *app.App, out io.Writer, logger zerolog.Logger) *Shell {
	return &Shell{app: a, out: out, logger: logger}
}

func usage(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrUsage}, args...)...)
}

// Exec runs one command line, waits for the page refreshes it started and
// prints the visible page. Errors already shown in the banner are returned
// as well so callers can set an exit status.
func (s *Shell) Exec(ctx context.Context, line string) error {
	words, err := Split(line)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return nil
	}
	cmd, args := words[0], words[1:]
	s.logger.Debug().Str("command", cmd).Int("args", len(args)).Msg("shell command")

	switch cmd {
	case "help":
		_, err := io.WriteString(s.out, helpText)
		return err
	case "show":
	case "go":
		if len(args) != 1 {
			return usage("go <location>")
		}
		s.app.Navigate(ctx, "#"+strings.TrimPrefix(args[0], "#"))
	case "scroll":
		if len(args) != 1 {
			return usage("scroll <n>")
		}
		n, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			return usage("scroll <n>: %q is not a number", args[0])
		}
		s.app.Controller().Scroll(n)
	case "submit":
		form, formErr := parseForm(args)
		if formErr != nil {
			return formErr
		}
		err = s.app.Dispatch(ctx, app.EventSubmit, form)
	case "approve", "reject":
		if len(args) != 1 {
			return usage("%s <id>", cmd)
		}
		event := app.EventApprove
		if cmd == "reject" {
			event = app.EventReject
		}
		err = s.app.Dispatch(ctx, event, nav.Form{"id": args[0]})
	case "select-patient":
		if len(args) < 1 {
			return usage("select-patient <id> <name>")
		}
		err = s.app.Dispatch(ctx, app.EventSelectPatient, nav.Form{"id": args[0], "name": strings.Join(args[1:], " ")})
	case "details":
		if len(args) != 1 {
			return usage("details <prediction id>")
		}
		err = s.app.Dispatch(ctx, app.EventViewDetails, nav.Form{"id": args[0]})
	case "note":
		if len(args) < 1 {
			return usage("note <prediction id> <text>")
		}
		err = s.app.Dispatch(ctx, app.EventSaveNote, nav.Form{"id": args[0], "note": strings.Join(args[1:], " ")})
	case "logout":
		err = s.app.Dispatch(ctx, app.EventLogout, nil)
	default:
		return usage("unknown command %q, try help", cmd)
	}

	s.app.Wait()
	if errors.Is(err, nav.ErrNoHandler) {
		fmt.Fprintf(s.out, "%s is not available on %s\n", cmd, s.app.Controller().Current())
	}
	if renderErr := s.app.Render(s.out); renderErr != nil {
		return renderErr
	}
	return err
}

func parseForm(args []string) (nav.Form, error) {
	form := nav.Form{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, usage("submit expects key=value, got %q", arg)
		}
		form[k] = v
	}
	return form, nil
}

// Run reads commands from in until EOF or quit. Usage errors are printed;
// other command errors are already visible in the rendered banner.
func (s *Shell) Run(ctx context.Context, in io.Reader, prompt string) error {
	sc := bufio.NewScanner(in)
	for {
		if prompt != "" {
			io.WriteString(s.out, prompt)
		}
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "quit" || line == "exit" {
			return nil
		}
		if err := s.Exec(ctx, line); err != nil {
			if errors.Is(err, ErrUsage) || errors.Is(err, ErrUnterminatedQuote) {
				fmt.Fprintln(s.out, err)
			}
			s.logger.Debug().Err(err).Msg("command failed")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
