// Package source discovers documentation pages under a root directory and
// extracts what the index builder needs from each: the page title, every
// section title with its anchor, and the page text.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// Page is one parsed documentation source file.
type Page struct {
	Docname  string
	Filename string
	Title    string
	Sections []Section
	Text     string
}

// Section is a heading within a page. The first section is the page title.
type Section struct {
	Title  string
	Anchor string
}

// Options controls discovery and parsing.
type Options struct {
	Include []string
	Exclude []string
	Workers int
}

// Discover returns the slash-separated paths under root matching any include
// pattern and no exclude pattern, sorted.
func Discover(root string, include, exclude []string) ([]string, error) {
	for _, pattern := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid glob pattern %q", pattern)
		}
	}
	fsys := os.DirFS(root)
	seen := make(map[string]struct{})
	for _, pattern := range include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("globbing %q under %s: %w", pattern, root, err)
		}
		for _, m := range matches {
			if excluded(m, exclude) {
				continue
			}
			seen[m] = struct{}{}
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// Load discovers and parses every page under root. Files are parsed
// concurrently; the result is ordered by docname.
func Load(ctx context.Context, root string, opts Options) ([]Page, error) {
	paths, err := Discover(root, opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("component", "source-reader")
	logger.Info("source pages discovered", "root", root, "pages", len(paths))

	pages := make([]Page, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, rel := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			page, err := ParseFile(root, rel)
			if err != nil {
				return err
			}
			pages[i] = page
			logger.Debug("page parsed",
				"docname", page.Docname,
				"sections", len(page.Sections),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Docname < pages[j].Docname
	})
	return pages, nil
}

// ParseFile reads root/rel and parses it.
func ParseFile(root, rel string) (Page, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return Page{}, fmt.Errorf("reading page %s: %w", rel, err)
	}
	return Parse(rel, data), nil
}

var (
	mdHeading    = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)
	rstRole      = regexp.MustCompile(`:[A-Za-z][\w:+.-]*:` + "`")
	rstDirective = regexp.MustCompile(`^\s*\.\.\s+[\w:-]+::`)
	rstComment   = regexp.MustCompile(`^\s*\.\.(\s|$)`)
)

// Parse extracts title, sections and text from a reStructuredText or
// Markdown page. filename is the slash-separated path relative to the source
// root; the docname is the filename without its extension.
func Parse(filename string, content []byte) Page {
	page := Page{
		Docname:  strings.TrimSuffix(filename, path.Ext(filename)),
		Filename: filename,
	}
	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	markdown := path.Ext(filename) == ".md"
	anchors := make(map[string]int)

	var text []string
	addSection := func(title string) {
		title = strings.TrimSpace(title)
		if title == "" {
			return
		}
		page.Sections = append(page.Sections, Section{
			Title:  title,
			Anchor: uniqueAnchor(Slug(title), anchors),
		})
		if page.Title == "" {
			page.Title = title
		}
		text = append(text, title)
	}

	inFence := false
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if markdown {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				inFence = !inFence
				continue
			}
			if !inFence {
				if m := mdHeading.FindStringSubmatch(line); m != nil {
					addSection(m[2])
					continue
				}
			}
			text = append(text, line)
			continue
		}

		// Overlined heading: adornment, title, adornment.
		if isAdornment(line) && i+2 < len(lines) && isAdornment(lines[i+2]) &&
			strings.TrimSpace(lines[i+1]) != "" && lines[i+2][0] == line[0] {
			addSection(lines[i+1])
			i += 2
			continue
		}
		// Underlined heading: title, adornment at least as long.
		if i+1 < len(lines) && strings.TrimSpace(line) != "" && !startsWithSpace(line) && !isAdornment(line) &&
			isAdornment(lines[i+1]) && len(strings.TrimRight(lines[i+1], " ")) >= len([]rune(strings.TrimSpace(line))) {
			addSection(line)
			i++
			continue
		}
		if rstDirective.MatchString(line) {
			continue
		}
		if rstComment.MatchString(line) {
			continue
		}
		text = append(text, rstRole.ReplaceAllString(line, "`"))
	}

	if page.Title == "" {
		page.Title = page.Docname
	}
	page.Text = strings.Join(text, "\n")
	return page
}

// Slug turns a section title into a URL anchor: lower-case, runs of
// characters other than letters and digits collapsed to one hyphen, leading
// non-letters and trailing hyphens stripped.
func Slug(title string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if b.Len() == 0 && !unicode.IsLetter(r) {
				continue
			}
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	if b.Len() == 0 {
		return "section"
	}
	return b.String()
}

func uniqueAnchor(anchor string, used map[string]int) string {
	n := used[anchor]
	used[anchor] = n + 1
	if n == 0 {
		return anchor
	}
	return fmt.Sprintf("%s-%d", anchor, n)
}

const adornmentChars = "=-~^\"'`#*+:._<>!$%&,/;?@\\|"

func isAdornment(line string) bool {
	line = strings.TrimRight(line, " \t")
	if len(line) < 2 {
		return false
	}
	c := line[0]
	if !strings.ContainsRune(adornmentChars, rune(c)) {
		return false
	}
	for i := 1; i < len(line); i++ {
		if line[i] != c {
			return false
		}
	}
	return true
}

func startsWithSpace(line string) bool {
	return line != "" && (line[0] == ' ' || line[0] == '\t')
}

func excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
