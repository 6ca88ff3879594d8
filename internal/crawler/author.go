package crawler

import (
	"strings"
	"time"
)

// BornDateLayout is the only accepted born_date format, e.g. "May 1, 1999".
const BornDateLayout = "January 2, 2006"

// NewAuthor validates raw biography fields and builds an Author. A born date
// that does not parse as a calendar date, or that lies after now, rejects the
// whole record.
func NewAuthor(name string, details AuthorDetails, now time.Time) (Author, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Author{}, &ValidationError{Field: "fullname", Reason: "must not be empty"}
	}
	author := Author{
		FullName:     name,
		BornLocation: optionalText(details.BornLocation),
		Description:  normalizeDescription(details.Description),
	}
	born := optionalText(details.BornDate)
	if born != nil {
		if err := validateBornDate(*born, now); err != nil {
			return Author{}, err
		}
		author.BornDate = born
	}
	return author, nil
}

func validateBornDate(raw string, now time.Time) error {
	parsed, err := time.Parse(BornDateLayout, raw)
	if err != nil {
		return &ValidationError{Field: "born_date", Value: raw, Reason: "expected a date like \"May 1, 1999\""}
	}
	if parsed.After(now) {
		return &ValidationError{Field: "born_date", Value: raw, Reason: "born date cannot be in the future"}
	}
	return nil
}

func optionalText(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func normalizeDescription(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.ReplaceAll(*v, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return optionalText(&s)
}

// NewQuote trims and checks a quote block's fields.
func NewQuote(text, author string, tags []string) (Quote, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Quote{}, &ValidationError{Field: "quote", Reason: "must not be empty"}
	}
	author = strings.TrimSpace(author)
	if author == "" {
		return Quote{}, &ValidationError{Field: "author", Reason: "must not be empty"}
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return Quote{Text: text, Author: author, Tags: out}, nil
}
