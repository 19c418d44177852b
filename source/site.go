package source

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Markers in the <main> element of an answer response.
const (
	markerRight         = "That's the right answer"
	markerWrong         = "That's not the right answer"
	markerWrongLevel    = "You don't seem to be solving the right level"
	markerNotLoggedIn   = "To play, please identify yourself"
	markerAcceptedShown = "Your puzzle answer was"
)

// submitOutcome classifies the site's reply to an answer submission.
type submitOutcome int

const (
	outcomeUnknown submitOutcome = iota
	outcomeRight
	outcomeWrong
	outcomeWrongLevel
	outcomeNotLoggedIn
)

// mainElement parses a page and returns its <main> element.
func mainElement(page []byte) (*html.Node, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	main := findElement(doc, atom.Main)
	if main == nil {
		return nil, fmt.Errorf("%w: could not find main element in response", ErrUnexpectedResponse)
	}
	return main, nil
}

func classifySubmitResponse(main *html.Node) submitOutcome {
	text := textContent(main)
	switch {
	case strings.Contains(text, markerRight):
		return outcomeRight
	case strings.Contains(text, markerWrong):
		return outcomeWrong
	case strings.Contains(text, markerWrongLevel):
		return outcomeWrongLevel
	case strings.Contains(text, markerNotLoggedIn):
		return outcomeNotLoggedIn
	default:
		return outcomeUnknown
	}
}

// acceptedAnswer finds the answer the site shows as accepted for part. It is
// printed between the part's <article> and the next one:
//
//	<article>part 1</article><p>Your puzzle answer was <code>123</code>.</p><article>...
func acceptedAnswer(main *html.Node, part int) (string, error) {
	articles := 0
	for c := main.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Article {
			articles++
			continue
		}
		if articles != part {
			continue
		}
		if answer, ok := answerCode(c); ok {
			return answer, nil
		}
	}
	return "", ErrAnswerNotFound
}

func answerCode(n *html.Node) (string, bool) {
	if n.Type == html.TextNode && strings.Contains(n.Data, markerAcceptedShown) {
		for s := n.NextSibling; s != nil; s = s.NextSibling {
			if s.Type == html.ElementNode && s.DataAtom == atom.Code {
				return textContent(s), true
			}
		}
		return "", false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if answer, ok := answerCode(c); ok {
			return answer, true
		}
	}
	return "", false
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
