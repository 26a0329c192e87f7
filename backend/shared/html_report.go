package shared

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLReport is an advisory look at a generated document. It never rejects a
// shader; it only records what a reviewer would want to know.
type HTMLReport struct {
	HasDoctype      bool
	HasCanvas       bool
	HasMessageHook  bool
	ScriptCount     int
	ExternalScripts []string
	ExternalLinks   []string
	ParseFailed     bool
}

// Warnings lists the problems found, in a stable order.
func (r HTMLReport) Warnings() []string {
	var w []string
	if r.ParseFailed {
		return []string{"document could not be tokenized"}
	}
	if !r.HasDoctype {
		w = append(w, "missing doctype")
	}
	if !r.HasCanvas {
		w = append(w, "no canvas with id "+CanvasElementID)
	}
	if r.ScriptCount == 0 {
		w = append(w, "no inline script")
	}
	if !r.HasMessageHook {
		w = append(w, "no "+UpdateParamsMessageType+" listener")
	}
	for _, src := range r.ExternalScripts {
		w = append(w, "external script "+src)
	}
	for _, href := range r.ExternalLinks {
		w = append(w, "external stylesheet "+href)
	}
	return w
}

// Metadata renders the report as a plain map for the shader metadata.
func (r HTMLReport) Metadata() map[string]interface{} {
	warnings := make([]interface{}, 0)
	for _, w := range r.Warnings() {
		warnings = append(warnings, w)
	}
	return map[string]interface{}{
		"canvas":   r.HasCanvas,
		"scripts":  float64(r.ScriptCount),
		"warnings": warnings,
	}
}

// InspectHTML tokenizes doc and reports its structure.
func InspectHTML(doc string) HTMLReport {
	var r HTMLReport
	z := html.NewTokenizer(strings.NewReader(doc))
	inScript := false

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if !errors.Is(z.Err(), io.EOF) {
				r.ParseFailed = true
			}
			return r
		case html.DoctypeToken:
			if strings.EqualFold(strings.TrimSpace(string(z.Text())), "html") {
				r.HasDoctype = true
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "canvas":
				if attr(tok, "id") == CanvasElementID {
					r.HasCanvas = true
				}
			case "script":
				if src := attr(tok, "src"); src != "" {
					r.ExternalScripts = append(r.ExternalScripts, src)
				} else {
					r.ScriptCount++
					inScript = tt == html.StartTagToken
				}
			case "link":
				if strings.EqualFold(attr(tok, "rel"), "stylesheet") {
					r.ExternalLinks = append(r.ExternalLinks, attr(tok, "href"))
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "script" {
				inScript = false
			}
		case html.TextToken:
			if inScript && strings.Contains(string(z.Text()), UpdateParamsMessageType) {
				r.HasMessageHook = true
			}
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
