// Package csp builds Content-Security-Policy header values.
//
// The notification API serves JSON, not pages, so its policy exists to
// neutralize responses that end up rendered anyway: an error body opened
// directly in a browser, or a response reflected into a frame. The strict
// policy forbids loading anything.
package csp

import "strings"

type directive struct {
	name    string
	sources []string
}

// Policy is an ordered set of CSP directives.
type Policy struct {
	directives []directive
	reportOnly bool
}

func New() *Policy {
	return &Policy{}
}

// Directive appends one directive. Repeating a name replaces the earlier
// entry, so presets can be adjusted without duplicate directives.
func (p *Policy) Directive(name string, sources ...string) *Policy {
	for i := range p.directives {
		if p.directives[i].name == name {
			p.directives[i].sources = sources
			return p
		}
	}
	p.directives = append(p.directives, directive{name: name, sources: sources})
	return p
}

// ReportOnly switches the policy to the report-only header, which surfaces
// violations in the browser console without blocking.
func (p *Policy) ReportOnly(enabled bool) *Policy {
	p.reportOnly = enabled
	return p
}

// HeaderName returns the response header this policy should be set under.
func (p *Policy) HeaderName() string {
	if p.reportOnly {
		return "Content-Security-Policy-Report-Only"
	}
	return "Content-Security-Policy"
}

// Build serializes the policy into a header value.
func (p *Policy) Build() string {
	parts := make([]string, 0, len(p.directives))
	for _, d := range p.directives {
		if len(d.sources) == 0 {
			parts = append(parts, d.name)
			continue
		}
		parts = append(parts, d.name+" "+strings.Join(d.sources, " "))
	}
	return strings.Join(parts, "; ")
}

// StrictPolicy locks the response down completely: nothing may be loaded,
// framed, or submitted. The right default for a JSON API.
func StrictPolicy() *Policy {
	return New().
		Directive("default-src", "'none'").
		Directive("frame-ancestors", "'none'").
		Directive("base-uri", "'none'").
		Directive("form-action", "'none'")
}
