package ui

import (
	stderrors "errors"
	"testing"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/core"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftcast/internal/forecast"
)

// scriptedAsk answers each question from answers by name and records the
// order in which questions were asked.
func scriptedAsk(t *testing.T, answers map[string]interface{}, asked *[]string) askFunc {
	return func(qs []*survey.Question, response interface{}, opts ...survey.AskOpt) error {
		for _, q := range qs {
			if asked != nil {
				*asked = append(*asked, q.Name)
			}
			v, ok := answers[q.Name]
			if !ok {
				t.Fatalf("unexpected question %q", q.Name)
			}
			if err := core.WriteAnswer(response, q.Name, v); err != nil {
				return err
			}
		}
		return nil
	}
}

func failingAsk(err error) askFunc {
	return func([]*survey.Question, interface{}, ...survey.AskOpt) error { return err }
}

func TestPrompter_SelectCity(t *testing.T) {
	p := &Prompter{ask: scriptedAsk(t, map[string]interface{}{"city": "Vancouver"}, nil)}

	city, err := p.SelectCity([]string{"Tokyo", "Vancouver"})
	require.NoError(t, err)
	assert.Equal(t, "Vancouver", city)

	_, err = p.SelectCity(nil)
	assert.Error(t, err)
}

func TestPrompter_SelectShift(t *testing.T) {
	p := &Prompter{ask: scriptedAsk(t, map[string]interface{}{"shift": "PM"}, nil)}

	shift, err := p.SelectShift()
	require.NoError(t, err)
	assert.Equal(t, forecast.ShiftPM, shift)
}

func TestPrompter_Interrupted(t *testing.T) {
	p := &Prompter{ask: failingAsk(terminal.InterruptErr)}

	_, err := p.SelectCity([]string{"Tokyo"})
	assert.ErrorIs(t, err, ErrCancelled)

	_, err = p.SelectShift()
	assert.ErrorIs(t, err, ErrCancelled)

	other := stderrors.New("tty closed")
	p = &Prompter{ask: failingAsk(other)}
	_, err = p.SelectShift()
	assert.ErrorIs(t, err, other)
}
