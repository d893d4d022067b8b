// Package detect classifies tracker pages. It is the only place that knows
// the literal copy the tracker renders on its login, landing and issue pages.
package detect

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Class is the kind of page a response rendered.
type Class int

const (
	ClassUnknown Class = iota
	ClassPasswordPrompt
	ClassLanding
	ClassIssue
)

func (c Class) String() string {
	switch c {
	case ClassPasswordPrompt:
		return "password_prompt"
	case ClassLanding:
		return "landing"
	case ClassIssue:
		return "issue"
	default:
		return "unknown"
	}
}

// PageValidator classifies a parsed page.
type PageValidator interface {
	Classify(doc *goquery.Document) Class
}

// Rule maps a literal marker to the class of page it identifies.
type Rule struct {
	Class  Class
	Marker string
}

// SubstringValidator returns the class of the first rule whose marker occurs
// in the page text.
type SubstringValidator struct {
	Rules []Rule
}

func (v *SubstringValidator) Classify(doc *goquery.Document) Class {
	if doc == nil {
		return ClassUnknown
	}
	text := doc.Text()
	for _, r := range v.Rules {
		if r.Marker != "" && strings.Contains(text, r.Marker) {
			return r.Class
		}
	}
	return ClassUnknown
}

// Default markers rendered by MantisBT.
const (
	LandingMarker = "Assigned to Me (Unresolved)"
	IssueMarker   = "View Issue Details"
)

// PasswordPromptMarker is the acknowledgment the tracker renders after the
// username step; it echoes the submitted username.
func PasswordPromptMarker(username string) string {
	return fmt.Sprintf("Enter password for '%s'", username)
}

// Default returns the substring strategy for the given username.
func Default(username string) *SubstringValidator {
	return &SubstringValidator{Rules: []Rule{
		{Class: ClassIssue, Marker: IssueMarker},
		{Class: ClassLanding, Marker: LandingMarker},
		{Class: ClassPasswordPrompt, Marker: PasswordPromptMarker(username)},
	}}
}
