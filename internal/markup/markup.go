// Package markup rewrites Assembla wiki text into GitHub flavored markdown.
package markup

import (
	"fmt"
	"regexp"
	"strings"
)

type rule struct {
	pattern *regexp.Regexp
	repl    string
}

var (
	zeroWidth = strings.NewReplacer("\u200b", "")

	unescaper = strings.NewReplacer(
		`\u0026`, "&",
		`\u003c`, "<",
		`\u003e`, ">",
		`\n`, "\n",
	)

	// Applied in order: a literal "# " becomes a bullet before "h1. " is turned into "# ".
	lineRules = []rule{
		{regexp.MustCompile(`(?m)^# `), "* "},
		{regexp.MustCompile(`(?m)^h1\. `), "# "},
		{regexp.MustCompile(`(?m)^h2\. `), "## "},
		{regexp.MustCompile(`(?m)^h3\. `), "### "},
		{regexp.MustCompile(`(?m)^h4\. `), "#### "},
		{regexp.MustCompile(`(?m)^h5\. `), "##### "},
		{regexp.MustCompile(`(?m)^\*\* `), "  * "},
		{regexp.MustCompile(`(?m)^\*\*\* `), "    * "},
		{regexp.MustCompile(`(?m)^\*\*\*\* `), "      * "},
	}

	fences = strings.NewReplacer("<pre><code>", "```", "</code></pre>", "```")

	urlLink     = regexp.MustCompile(`\[\[url:(.*?)\|(.*?)\]\]`)
	ticketLink  = regexp.MustCompile(`https://(?:app|www)\.assembla\.com/spaces/\S*?/tickets/(\d+)[a-zA-Z0-9\-/]*`)
	imageLink   = regexp.MustCompile(`\[\[image:[^\]]*\|([^\]|]*)\]\]`)
	fenceBefore = regexp.MustCompile("([^\n])```")
	fenceAfter  = regexp.MustCompile("```([^\n])")
)

// Rewriter converts ticket text for a single destination repository, so that
// links between Assembla tickets keep pointing at the same numbers on GitHub.
type Rewriter struct {
	repo string
}

func NewRewriter(repo string) *Rewriter {
	return &Rewriter{repo: repo}
}

func (r *Rewriter) IssueURL(number string) string {
	return fmt.Sprintf("https://github.com/%s/issues/%s", r.repo, number)
}

func (r *Rewriter) Rewrite(text string) string {
	out := unescaper.Replace(zeroWidth.Replace(text))
	for _, lr := range lineRules {
		out = lr.pattern.ReplaceAllString(out, lr.repl)
	}
	out = fences.Replace(out)
	out = urlLink.ReplaceAllString(out, "[$2]($1)")
	out = ticketLink.ReplaceAllString(out, r.IssueURL("$1"))
	out = imageLink.ReplaceAllString(out, "image: `$1`")
	out = fenceBefore.ReplaceAllString(out, "$1\n```")
	return fenceAfter.ReplaceAllString(out, "```\n$1")
}
