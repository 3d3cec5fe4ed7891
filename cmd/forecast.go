package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shiftcast/internal/common"
	"shiftcast/internal/forecast"
	"shiftcast/internal/ui"
	"shiftcast/pkg/errors"
)

const (
	formatTable   = "table"
	formatJSON    = "json"
	formatGeoJSON = "geojson"
)

// targetFlags are shared by features and predict.
type targetFlags struct {
	city   string
	shift  string
	format string
	output string
}

func (f *targetFlags) register(cmd *cobra.Command, formats string) {
	cmd.Flags().StringVar(&f.city, "city", "", "city to forecast (prompted when omitted on a terminal)")
	cmd.Flags().StringVar(&f.shift, "shift", "", "shift to forecast: AM or PM")
	cmd.Flags().StringVarP(&f.format, "format", "f", formatTable, "output format: "+formats)
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write to a file instead of stdout")
}

func (f *targetFlags) checkFormat(allowed ...string) error {
	for _, a := range allowed {
		if f.format == a {
			return nil
		}
	}
	return errors.ValidationError("format", f.format, fmt.Sprintf("must be one of %v", allowed))
}

// interactive reports whether missing flags may be prompted for. Swapped in tests.
var interactive = ui.IsInteractive

// newPrompter is swapped in tests.
var newPrompter = func() cityShiftPrompter { return ui.NewPrompter() }

type cityShiftPrompter interface {
	SelectCity(cities []string) (string, error)
	SelectShift() (forecast.Shift, error)
}

// resolveTarget fills in the city and shift from flags or prompts.
func (f *targetFlags) resolveTarget(ctx context.Context, p *forecast.Pipeline) (string, forecast.Shift, error) {
	city := f.city
	if city == "" {
		if !interactive() {
			return "", "", errors.ValidationError("city", "", "--city is required when not running on a terminal")
		}
		cities, err := p.Cities(ctx)
		if err != nil {
			return "", "", err
		}
		if city, err = newPrompter().SelectCity(cities); err != nil {
			return "", "", err
		}
	}

	if f.shift == "" {
		if !interactive() {
			return "", "", errors.ValidationError("shift", "", "--shift is required when not running on a terminal")
		}
		shift, err := newPrompter().SelectShift()
		return city, shift, err
	}

	shift, err := forecast.ParseShift(f.shift)
	return city, shift, err
}

// withOutput runs write against stdout or the --output file.
func (f *targetFlags) withOutput(cmd *cobra.Command, write func(cmd *cobra.Command) error) error {
	if f.output == "" {
		return write(cmd)
	}
	path, err := common.CleanPath(f.output)
	if err != nil {
		return errors.ValidationError("output", f.output, err.Error())
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, common.FilePermissionNormal)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	cmd.SetOut(file)
	if err := write(cmd); err != nil {
		return err
	}
	ui.ShowSuccess(fmt.Sprintf("Wrote %s", path))
	return nil
}

// runWithSpinner shows a spinner on a terminal while fn runs.
func runWithSpinner(message string, fn func() error) error {
	if !interactive() {
		return fn()
	}
	spinner := ui.NewSpinner(message)
	spinner.Start()
	if err := fn(); err != nil {
		spinner.Stop(false, message)
		return err
	}
	spinner.Stop(true, message)
	return nil
}
