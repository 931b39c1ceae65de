package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"festival-scraper/models"
)

var festivalValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a festival before it is written. Missing dates, an empty
// location or a malformed detail URL raise quality flags and the record is
// kept. A missing name or source makes the record unusable and returns an
// error.
func Validate(f *models.CanonicalFestival) error {
	if !f.HasDates() {
		f.AddFlag(models.FlagDatesUnparsed)
	}
	if strings.TrimSpace(f.Location) == "" {
		f.AddFlag(models.FlagLocationMissing)
	}
	if f.DetailURL != "" && !AbsoluteURL(f.DetailURL) {
		f.AddFlag(models.FlagDetailURLInvalid)
	}

	err := festivalValidator.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate festival: %w", err)
	}
	var fatal []string
	for _, fe := range verrs {
		switch fe.Field() {
		case "DetailURL":
			f.AddFlag(models.FlagDetailURLInvalid)
		default:
			fatal = append(fatal, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
	}
	if len(fatal) > 0 {
		return &models.ParseError{Input: f.Name, Reason: strings.Join(fatal, "; ")}
	}
	return nil
}
