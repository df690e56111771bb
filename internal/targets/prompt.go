package targets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/ibeckermayer/ticketfill/internal/types"
)

// ErrAborted is returned when the operator interrupts a prompt
var ErrAborted = errors.New("prompt aborted")

// Prompter asks the operator questions on the terminal
type Prompter interface {
	Input(ctx context.Context, message, help, def string) (string, error)
	Confirm(ctx context.Context, message string, def bool) (bool, error)
}

// SurveyPrompter implements Prompter with survey
type SurveyPrompter struct{}

func (SurveyPrompter) Input(ctx context.Context, message, help, def string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	prompt := &survey.Input{Message: message, Help: help, Default: def}
	if err := survey.AskOne(prompt, &out, survey.WithValidator(survey.Required)); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func (SurveyPrompter) Confirm(ctx context.Context, message string, def bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var out bool
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &out); err != nil {
		return false, translateSurveyErr(err)
	}
	return out, nil
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}

// Prompt asks which targets to process until at least one known target is
// chosen
func Prompt(ctx context.Context, p Prompter, all []types.Target) ([]types.Target, error) {
	if len(all) == 0 {
		return nil, nil
	}
	help := "Known targets: " + strings.Join(Identifiers(all), ", ")
	for {
		answer, err := p.Input(ctx, fmt.Sprintf("Targets to process (%d known; \"all\" or comma separated):", len(all)), help, "all")
		if err != nil {
			return nil, err
		}
		selected, unknown := Select(all, answer)
		if len(unknown) > 0 {
			fmt.Printf("Unknown targets skipped: %s\n", strings.Join(unknown, ", "))
		}
		if len(selected) > 0 {
			return selected, nil
		}
	}
}
