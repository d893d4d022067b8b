package detect

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestDefault_Classify(t *testing.T) {
	v := Default("alice")
	cases := []struct {
		name string
		html string
		want Class
	}{
		{"password prompt", `<p>Enter password for 'alice'</p>`, ClassPasswordPrompt},
		{"password prompt entity", `<p>Enter password for &#039;alice&#039;</p>`, ClassPasswordPrompt},
		{"other user", `<p>Enter password for 'bob'</p>`, ClassUnknown},
		{"landing", `<h2>Assigned to Me (Unresolved)</h2>`, ClassLanding},
		{"issue", `<td class="form-title">View Issue Details</td>`, ClassIssue},
		{"login form", `<form><input name="username"></form>`, ClassUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := v.Classify(parse(t, tc.html))
			if got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestClassify_NilDocument(t *testing.T) {
	if got := Default("x").Classify(nil); got != ClassUnknown {
		t.Errorf("expected unknown, got %s", got)
	}
}

func TestSubstringValidator_FirstRuleWins(t *testing.T) {
	v := &SubstringValidator{Rules: []Rule{
		{Class: ClassLanding, Marker: "Welcome"},
		{Class: ClassIssue, Marker: "Issue"},
	}}
	got := v.Classify(parse(t, `<p>Welcome to Issue 12</p>`))
	if got != ClassLanding {
		t.Errorf("expected landing, got %s", got)
	}
}

func TestSubstringValidator_EmptyMarkerIgnored(t *testing.T) {
	v := &SubstringValidator{Rules: []Rule{{Class: ClassIssue, Marker: ""}}}
	if got := v.Classify(parse(t, `<p>anything</p>`)); got != ClassUnknown {
		t.Errorf("expected unknown, got %s", got)
	}
}
