package icons

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/sitebuild/internal/logging"
)

// Options configures the built-in subsetter. Paths are absolute.
type Options struct {
	// OutputDir is scanned for *.html files.
	OutputDir string
	// Library holds one <name>.svg per icon.
	Library string
	// Attribute carries the icon name on placeholder elements.
	Attribute    string
	JSOutput     string
	SpriteOutput string
	// Minify also writes a *.min.js sibling of JSOutput.
	Minify bool
}

// Icon is one resolved icon.
type Icon struct {
	// Name is the slug used in HTML.
	Name string
	// Export is the PascalCase key in the script bundle.
	Export string
	// Body is the inner SVG markup.
	Body string
}

// Subsetter collects the icons used by the built pages and writes a sprite
// and a script bundle holding only those icons.
type Subsetter struct {
	opts   Options
	logger logging.Logger

	// library caches the icon names of opts.Library until its mtime changes.
	mutex      sync.Mutex
	library    []string
	libraryMod time.Time
}

// NewSubsetter creates a subsetter.
func NewSubsetter(opts Options, logger logging.Logger) *Subsetter {
	if opts.Attribute == "" {
		opts.Attribute = "data-lucide"
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Subsetter{opts: opts, logger: logger.WithComponent("icons")}
}

// Build implements Builder.
func (s *Subsetter) Build(ctx context.Context) error {
	names, err := s.Scan()
	if err != nil {
		return err
	}

	icons, missing := s.Resolve(names)
	for _, name := range missing {
		s.logger.Warn(ctx, nil, "Icon not found in library", "icon", name, "library", s.opts.Library)
	}

	if err := writeFile(s.opts.SpriteOutput, Sprite(icons)); err != nil {
		return fmt.Errorf("failed to write sprite: %w", err)
	}

	bundle := Bundle(icons, s.opts.Attribute)
	if err := writeFile(s.opts.JSOutput, bundle); err != nil {
		return fmt.Errorf("failed to write icon bundle: %w", err)
	}

	if s.opts.Minify {
		minified, err := Minify(bundle)
		if err != nil {
			return err
		}
		if err := writeFile(MinPath(s.opts.JSOutput), minified); err != nil {
			return fmt.Errorf("failed to write minified icon bundle: %w", err)
		}
	}

	s.logger.Info(ctx, "Built icon subset", "icons", len(icons), "missing", len(missing))
	return nil
}

// Scan returns the sorted, distinct icon names used by every HTML file
// under the output directory.
func (s *Subsetter) Scan() ([]string, error) {
	seen := make(map[string]struct{})

	err := filepath.WalkDir(s.opts.OutputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".html") {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		names, err := ExtractNames(f, s.opts.Attribute)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", path, err)
		}
		for _, n := range names {
			seen[n] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// ExtractNames returns the values of attr on every element of an HTML
// document, in document order, without duplicates.
func ExtractNames(r io.Reader, attr string) ([]string, error) {
	attr = strings.ToLower(attr)
	z := html.NewTokenizer(r)
	seen := make(map[string]struct{})
	var names []string

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return names, nil
			}
			return names, z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			for {
				key, val, more := z.TagAttr()
				if string(key) == attr {
					name := strings.TrimSpace(string(val))
					if _, ok := seen[name]; name != "" && !ok {
						seen[name] = struct{}{}
						names = append(names, name)
					}
				}
				if !more {
					break
				}
			}
		}
	}
}

// Resolve looks every name up in the library. A name without an exact
// <name>.svg falls back to the first library icon whose name contains it or
// is contained by it.
func (s *Subsetter) Resolve(names []string) ([]Icon, []string) {
	var icons []Icon
	var missing []string

	for _, name := range names {
		file := s.lookup(name)
		if file == "" {
			missing = append(missing, name)
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.opts.Library, file+".svg"))
		if err != nil {
			missing = append(missing, name)
			continue
		}
		icons = append(icons, Icon{Name: name, Export: ExportName(name), Body: svgBody(string(data))})
	}

	return icons, missing
}

func (s *Subsetter) lookup(name string) string {
	if strings.ContainsAny(name, `/\`) {
		return ""
	}
	if _, err := os.Stat(filepath.Join(s.opts.Library, name+".svg")); err == nil {
		return name
	}

	want := strings.ToLower(name)
	for _, candidate := range s.libraryNames() {
		c := strings.ToLower(candidate)
		if strings.Contains(c, want) || strings.Contains(want, c) {
			return candidate
		}
	}
	return ""
}

// libraryNames returns the sorted icon names in the library directory,
// re-reading it whenever the directory's modification time changes.
func (s *Subsetter) libraryNames() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	info, err := os.Stat(s.opts.Library)
	if err != nil {
		s.logger.Warn(context.Background(), err, "Icon library unreadable", "library", s.opts.Library)
		s.library, s.libraryMod = nil, time.Time{}
		return nil
	}
	if s.library != nil && info.ModTime().Equal(s.libraryMod) {
		return s.library
	}

	entries, err := os.ReadDir(s.opts.Library)
	if err != nil {
		s.logger.Warn(context.Background(), err, "Icon library unreadable", "library", s.opts.Library)
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".svg") {
			names = append(names, strings.TrimSuffix(e.Name(), ".svg"))
		}
	}
	sort.Strings(names)
	s.library, s.libraryMod = names, info.ModTime()
	return names
}

// ExportName converts an icon slug such as "arrow-right" to "ArrowRight".
func ExportName(slug string) string {
	caser := cases.Title(language.English)
	parts := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, p := range parts {
		parts[i] = caser.String(p)
	}
	return strings.Join(parts, "")
}

// svgBody strips the outer <svg> element.
func svgBody(svg string) string {
	start := strings.Index(svg, "<svg")
	if start < 0 {
		return strings.TrimSpace(svg)
	}
	open := strings.Index(svg[start:], ">")
	end := strings.LastIndex(svg, "</svg>")
	if open < 0 || end < start+open {
		return strings.TrimSpace(svg)
	}
	return strings.TrimSpace(svg[start+open+1 : end])
}

// Sprite renders a hidden SVG sprite with one <symbol> per icon.
func Sprite(icons []Icon) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" style="display:none">` + "\n")
	for _, icon := range icons {
		fmt.Fprintf(&b,
			`<symbol id="%s" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round">%s</symbol>`+"\n",
			html.EscapeString(icon.Name), icon.Body)
	}
	b.WriteString("</svg>\n")
	return b.String()
}

// Bundle renders a browser script exposing `lucide.icons` and
// `lucide.createIcons()`, which replaces every element carrying attribute
// with the matching inline SVG.
func Bundle(icons []Icon, attribute string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "/* icon subset: %d icons */\n", len(icons))
	b.WriteString("(function (global) {\n  'use strict';\n\n")
	b.WriteString("  var defaultAttributes = {\n")
	b.WriteString(`    xmlns: "http://www.w3.org/2000/svg", width: 24, height: 24, viewBox: "0 0 24 24",` + "\n")
	b.WriteString(`    fill: "none", stroke: "currentColor", "stroke-width": 2, "stroke-linecap": "round", "stroke-linejoin": "round"` + "\n")
	b.WriteString("  };\n\n")

	b.WriteString("  var icons = {\n")
	for _, icon := range icons {
		fmt.Fprintf(&b, "    %s: %s,\n", jsString(icon.Export), jsString(icon.Body))
	}
	b.WriteString("  };\n\n")

	b.WriteString("  var aliases = {\n")
	for _, icon := range icons {
		fmt.Fprintf(&b, "    %s: %s,\n", jsString(icon.Name), jsString(icon.Export))
	}
	b.WriteString("  };\n\n")

	fmt.Fprintf(&b, "  var defaultNameAttr = %s;\n\n", jsString(attribute))
	b.WriteString(bundleRuntime)
	return b.String()
}

const bundleRuntime = `  function createIcons(options) {
    options = options || {};
    var nameAttr = options.nameAttr || defaultNameAttr;
    var attrs = options.attrs || {};
    var root = options.root || document;

    Array.prototype.forEach.call(root.querySelectorAll("[" + nameAttr + "]"), function (element) {
      var name = element.getAttribute(nameAttr);
      var body = icons[aliases[name]];
      if (!body) {
        console.warn("icon " + name + " was not found in the subset");
        return;
      }
      var svg = document.createElementNS("http://www.w3.org/2000/svg", "svg");
      Object.keys(defaultAttributes).forEach(function (key) {
        svg.setAttribute(key, String(defaultAttributes[key]));
      });
      Object.keys(attrs).forEach(function (key) {
        svg.setAttribute(key, String(attrs[key]));
      });
      Array.prototype.forEach.call(element.attributes, function (attr) {
        svg.setAttribute(attr.name, attr.value);
      });
      svg.setAttribute("class", ["lucide", "lucide-" + name, element.getAttribute("class") || ""].join(" ").trim());
      svg.innerHTML = body;
      if (element.parentNode) {
        element.parentNode.replaceChild(svg, element);
      }
    });
  }

  global.lucide = { icons: icons, createIcons: createIcons };
})(typeof globalThis !== "undefined" ? globalThis : this);
`

func jsString(s string) string {
	out, _ := json.Marshal(s)
	return string(out)
}

// Minify shrinks a script with esbuild.
func Minify(js string) (string, error) {
	result := api.Transform(js, api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            api.ES2015,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Text)
		}
		return "", fmt.Errorf("minify failed: %s", strings.Join(msgs, "; "))
	}
	return string(result.Code), nil
}

// MinPath returns the *.min.js sibling of a script path.
func MinPath(js string) string {
	return strings.TrimSuffix(js, filepath.Ext(js)) + ".min.js"
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
