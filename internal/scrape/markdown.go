// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var collapseBlankLines = regexp.MustCompile(`\n{3,}`)

// htmlToMarkdown renders a parsed document's body to Markdown, replacing
// every <table> with its pipe-table rendering first (so the generic node
// walk below treats a table as an opaque pre-rendered string, mirroring
// original_source/stages/scraper.py's replace-then-walk structure). Returns
// the converted body, the number of tables found, and the number
// successfully converted.
func htmlToMarkdown(doc *goquery.Document, cellMaxChars int) (body string, tablesFound, tablesConverted int) {
	doc.Find("script, style, nav, footer, header, aside").Remove()

	tables := doc.Find("table")
	tablesFound = tables.Length()
	tables.Each(func(_ int, table *goquery.Selection) {
		md := tableToMarkdown(table, cellMaxChars)
		table.ReplaceWithHtml("\n\n" + escapeForReinsertion(md) + "\n\n")
		tablesConverted++
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var sb strings.Builder
	root.Contents().Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(nodeToMarkdown(s))
	})

	md := collapseBlankLines.ReplaceAllString(sb.String(), "\n\n")
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	md = strings.TrimSpace(strings.Join(lines, "\n"))
	if md != "" {
		md += "\n"
	}
	return md, tablesFound, tablesConverted
}

// escapeForReinsertion guards a pre-rendered Markdown table string against
// being re-parsed as HTML when handed back to goquery via ReplaceWithHtml.
func escapeForReinsertion(md string) string {
	r := strings.NewReplacer("<", "&lt;", ">", "&gt;")
	return r.Replace(md)
}

func nodeToMarkdown(s *goquery.Selection) string {
	node := s.Get(0)
	if node == nil {
		return ""
	}
	if node.Type == html.TextNode {
		return node.Data
	}
	if node.Type != html.ElementNode {
		return ""
	}

	switch node.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(node.Data[1] - '0')
		return "\n\n" + strings.Repeat("#", level) + " " + strings.TrimSpace(childrenMarkdown(s)) + "\n\n"
	case "p":
		return "\n\n" + strings.TrimSpace(childrenMarkdown(s)) + "\n\n"
	case "br":
		return "\n"
	case "a":
		href, _ := s.Attr("href")
		text := strings.TrimSpace(childrenMarkdown(s))
		if text == "" {
			text = strings.TrimSpace(s.Text())
		}
		if href == "" {
			return text
		}
		return "[" + text + "](" + href + ")"
	case "strong", "b":
		return "**" + strings.TrimSpace(childrenMarkdown(s)) + "**"
	case "em", "i":
		return "*" + strings.TrimSpace(childrenMarkdown(s)) + "*"
	case "code":
		if s.Parent().Is("pre") {
			return childrenMarkdown(s)
		}
		return "`" + strings.TrimSpace(childrenMarkdown(s)) + "`"
	case "pre":
		return "\n\n```\n" + strings.TrimSpace(s.Text()) + "\n```\n\n"
	case "blockquote":
		content := strings.TrimSpace(childrenMarkdown(s))
		var quoted []string
		for _, ln := range strings.Split(content, "\n") {
			if strings.TrimSpace(ln) == "" {
				quoted = append(quoted, ">")
			} else {
				quoted = append(quoted, "> "+ln)
			}
		}
		return "\n\n" + strings.Join(quoted, "\n") + "\n\n"
	case "hr":
		return "\n\n---\n\n"
	case "img":
		alt, _ := s.Attr("alt")
		src, _ := s.Attr("src")
		return "![" + alt + "](" + src + ")"
	case "ul", "ol":
		return listToMarkdown(s, node.Data == "ol") + "\n"
	case "li":
		return childrenMarkdown(s)
	default:
		return childrenMarkdown(s)
	}
}

func childrenMarkdown(s *goquery.Selection) string {
	var sb strings.Builder
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		sb.WriteString(nodeToMarkdown(child))
	})
	return sb.String()
}

func listToMarkdown(list *goquery.Selection, ordered bool) string {
	var sb strings.Builder
	index := 1
	list.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		content := strings.TrimSpace(childrenMarkdown(li))
		lines := strings.Split(content, "\n")
		prefix := "- "
		if ordered {
			prefix = strconv.Itoa(index) + ". "
		}
		for i, ln := range lines {
			if ln == "" {
				continue
			}
			if i == 0 {
				sb.WriteString(prefix + ln + "\n")
			} else {
				sb.WriteString("  " + ln + "\n")
			}
		}
		index++
	})
	return sb.String()
}

