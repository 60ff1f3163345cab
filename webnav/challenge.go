package webnav

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Challenge-wall marker lists, matched against lowercase title+URL+HTML.
//
// strictMarkers are phrases that essentially only interstitial pages use.
// lowConfidenceMarkers also appear in legitimate prose ("the captcha
// debate"), so alone they never flag a page.
var strictMarkers = []string{
	"just a moment...",
	"checking your browser",
	"verify you are human",
	"verifying you are human",
	"enable javascript and cookies to continue",
	"attention required! | cloudflare",
	"ddos protection by",
	"please stand by, while we are checking your browser",
}

var lowConfidenceMarkers = []string{
	"captcha",
	"recaptcha",
	"hcaptcha",
	"enable javascript",
	"unusual traffic",
	"are you a robot",
	"bot detection",
	"security check",
}

var denialMarkers = []string{
	"access denied",
	"access to this page has been denied",
	"you have been blocked",
	"not authorized",
	"pardon our interruption",
}

var statusTextMarkers = []string{
	"error 401",
	"error 403",
	"http 403",
	"401 unauthorized",
	"403 forbidden",
}

// articleFlagThreshold: pages scoring at or above this look like real
// content, so suspicion alone never flags them.
const articleFlagThreshold = 5

// IsChallengeWall reports whether a rendered page is an anti-bot
// interstitial rather than real content. Two independent scores are
// computed: marker-based suspicion, and article likelihood from the page
// structure. Only suspicious pages that do NOT look like articles are
// flagged; a long article mentioning "captcha" in passing must pass.
func IsChallengeWall(title, pageURL, htmlText string) bool {
	haystack := strings.ToLower(title + "\n" + pageURL + "\n" + htmlText)

	strictHits := countHits(haystack, strictMarkers)
	lowHits := countHits(haystack, lowConfidenceMarkers)
	denialHits := countHits(haystack, denialMarkers)
	statusHits := countHits(haystack, statusTextMarkers)

	suspicious := strictHits >= 1 ||
		(lowHits >= 2 && denialHits >= 1) ||
		statusHits >= 1
	if !suspicious {
		return false
	}

	return articleScore(title, pageURL, htmlText) < articleFlagThreshold
}

func countHits(haystack string, markers []string) int {
	hits := 0
	for _, m := range markers {
		if strings.Contains(haystack, m) {
			hits++
		}
	}
	return hits
}

// articleScore estimates how much a page looks like a real article.
// Structure signals come from the parsed tree; unparsable HTML simply
// scores what the raw text length allows.
func articleScore(title, pageURL, htmlText string) int {
	score := 0

	doc, err := html.Parse(strings.NewReader(htmlText))
	var counts tagCounts
	if err == nil {
		counts = countTags(doc)
	}

	if counts.article > 0 {
		score += 3
	}
	if counts.main > 0 {
		score++
	}
	if counts.video > 0 {
		score++
	}
	if counts.ogArticle {
		score += 2
	}
	if counts.jsonLDArticle {
		score += 2
	}
	if counts.socialMeta {
		score++
	}

	switch {
	case counts.paragraphs >= 8:
		score += 2
	case counts.paragraphs >= 4:
		score++
	}

	words := len(strings.Fields(counts.text))
	switch {
	case words >= 350:
		score += 3
	case words >= 120:
		score++
	}

	if n := len(strings.TrimSpace(title)); n >= 20 && n <= 120 && !strings.HasSuffix(title, "...") {
		score++
	}

	lowerPath := strings.ToLower(pageURL)
	for _, hint := range []string{"/article", "/story", "/news/", "/blog/", "/post/", "/papers/", "/abs/"} {
		if strings.Contains(lowerPath, hint) {
			score++
			break
		}
	}

	return score
}

type tagCounts struct {
	article       int
	main          int
	video         int
	paragraphs    int
	ogArticle     bool
	jsonLDArticle bool
	socialMeta    bool
	text          string
}

func countTags(doc *html.Node) tagCounts {
	var c tagCounts
	var text strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Article:
				c.article++
			case atom.Main:
				c.main++
			case atom.Video:
				c.video++
			case atom.P:
				c.paragraphs++
			case atom.Meta:
				inspectMeta(n, &c)
			case atom.Script:
				if attrVal(n, "type") == "application/ld+json" {
					inspectJSONLD(n, &c)
				}
				return // script bodies are not visible text
			case atom.Style:
				return
			}
		case html.TextNode:
			text.WriteString(n.Data)
			text.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	c.text = text.String()
	return c
}

func inspectMeta(n *html.Node, c *tagCounts) {
	prop := attrVal(n, "property")
	if prop == "" {
		prop = attrVal(n, "name")
	}
	content := strings.ToLower(attrVal(n, "content"))
	switch strings.ToLower(prop) {
	case "og:type":
		if content == "article" {
			c.ogArticle = true
		}
	case "og:image", "twitter:card", "twitter:site":
		c.socialMeta = true
	}
}

func inspectJSONLD(n *html.Node, c *tagCounts) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.TextNode {
			continue
		}
		body := strings.ToLower(child.Data)
		if strings.Contains(body, `"newsarticle"`) || strings.Contains(body, `"article"`) ||
			strings.Contains(body, `"blogposting"`) {
			c.jsonLDArticle = true
		}
	}
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
