// Package filter decides which fetched chat messages become candidate messages.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Acceptance gates fetched (sender, body) pairs.
//
// A message is accepted when its body matches at least one body pattern,
// its sender matches no denied pattern, and, if any allowed patterns are
// configured, its sender matches at least one of them. When denied patterns
// are configured an anonymous sender is rejected as well.
type Acceptance struct {
	body        []*regexp.Regexp
	denySender  []*regexp.Regexp
	allowSender []*regexp.Regexp
}

// NewSideA accepts human order-support requests: the body must look like a
// request and the sender must not be a known automated account.
func NewSideA(requestPatterns, automatedSenderPatterns []string) (*Acceptance, error) {
	body, err := compileAll("request", requestPatterns)
	if err != nil {
		return nil, err
	}
	deny, err := compileAll("automated sender", automatedSenderPatterns)
	if err != nil {
		return nil, err
	}
	return &Acceptance{body: body, denySender: deny}, nil
}

// NewSideB accepts replies from the vendor bot only, so human agents who
// take over the chat are ignored.
func NewSideB(botSenderPatterns, replyPatterns []string) (*Acceptance, error) {
	allow, err := compileAll("bot sender", botSenderPatterns)
	if err != nil {
		return nil, err
	}
	body, err := compileAll("reply", replyPatterns)
	if err != nil {
		return nil, err
	}
	return &Acceptance{body: body, allowSender: allow}, nil
}

// Accept reports whether the message passes the filter
func (a *Acceptance) Accept(sender, body string) bool {
	if len(a.allowSender) > 0 && !matchAny(a.allowSender, sender) {
		return false
	}
	if len(a.denySender) > 0 && (strings.TrimSpace(sender) == "" || matchAny(a.denySender, sender)) {
		return false
	}
	return matchAny(a.body, norm.NFKC.String(body))
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func compileAll(kind string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile %s pattern %q: %w", kind, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
