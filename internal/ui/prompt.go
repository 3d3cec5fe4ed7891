package ui

import (
	stderrors "errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"shiftcast/internal/forecast"
)

// askFunc matches survey.Ask so prompts can be driven in tests.
type askFunc func(qs []*survey.Question, response interface{}, opts ...survey.AskOpt) error

// ErrCancelled is returned when the user interrupts a prompt.
var ErrCancelled = stderrors.New("selection cancelled")

// Prompter asks for the city and shift when they were not given as flags.
type Prompter struct {
	ask askFunc
}

func NewPrompter() *Prompter {
	return &Prompter{ask: survey.Ask}
}

// SelectCity offers the cities present in the source table.
func (p *Prompter) SelectCity(cities []string) (string, error) {
	if len(cities) == 0 {
		return "", fmt.Errorf("no cities available to choose from")
	}

	answers := struct {
		City string
	}{}
	err := p.ask([]*survey.Question{{
		Name: "city",
		Prompt: &survey.Select{
			Message:  "City:",
			Options:  cities,
			PageSize: 12,
		},
		Validate: survey.Required,
	}}, &answers)
	if err != nil {
		return "", cancelled(err)
	}
	return answers.City, nil
}

// SelectShift asks for AM or PM.
func (p *Prompter) SelectShift() (forecast.Shift, error) {
	answers := struct {
		Shift string
	}{}
	err := p.ask([]*survey.Question{{
		Name: "shift",
		Prompt: &survey.Select{
			Message: "Shift:",
			Options: []string{string(forecast.ShiftAM), string(forecast.ShiftPM)},
			Default: string(forecast.ShiftAM),
		},
	}}, &answers)
	if err != nil {
		return "", cancelled(err)
	}
	return forecast.ParseShift(answers.Shift)
}

func cancelled(err error) error {
	if err == terminal.InterruptErr {
		return ErrCancelled
	}
	return err
}
