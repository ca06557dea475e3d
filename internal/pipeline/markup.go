package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/svg"

	"github.com/ShayCichocki/sitepipe/internal/asset"
)

const (
	mimeHTML = "text/html"
	mimeSVG  = "image/svg+xml"
)

var minifier = func() *minify.M {
	m := minify.New()
	m.Add(mimeHTML, &html.Minifier{
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
		KeepDefaultAttrVals: true,
	})
	m.Add(mimeSVG, &svg.Minifier{})
	return m
}()

func minifyFile(mime string) FileFunc {
	return func(_ context.Context, _ *Env, f *asset.File) ([]*asset.File, error) {
		out, err := minifier.Bytes(mime, f.Contents)
		if err != nil {
			return nil, err
		}
		c := f.Clone()
		c.Contents = out
		return []*asset.File{c}, nil
	}
}

// MinifyHTML collapses whitespace in HTML documents.
func MinifyHTML() Stage {
	return PerFile("htmlmin", minifyFile(mimeHTML), ".html", ".htm")
}

// MinifySVG minifies SVG documents.
func MinifySVG() Stage {
	return PerFile("svgmin", minifyFile(mimeSVG), ".svg")
}

// Sprite combines SVG files into one hidden symbol store named name. Each
// input becomes a <symbol> whose id is the file's base name and whose
// viewBox is copied from the input's root element.
func Sprite(name string) Stage {
	return StageFunc("svgstore", func(_ context.Context, _ *Env, files []*asset.File) ([]*asset.File, error) {
		if len(files) == 0 {
			return nil, nil
		}

		doc := etree.NewDocument()
		root := doc.CreateElement("svg")
		root.CreateAttr("xmlns", "http://www.w3.org/2000/svg")

		ids := make(map[string]string)
		for _, f := range files {
			if f.Ext() != ".svg" {
				continue
			}
			src := etree.NewDocument()
			if err := src.ReadFromBytes(f.Contents); err != nil {
				return nil, &fileError{rel: f.Rel, err: err}
			}
			svgRoot := src.Root()
			if svgRoot == nil || svgRoot.Tag != "svg" {
				return nil, &fileError{rel: f.Rel, err: fmt.Errorf("root element is not <svg>")}
			}

			id := strings.TrimSuffix(baseName(f.Rel), ".svg")
			if prev, dup := ids[id]; dup {
				return nil, &fileError{rel: f.Rel, err: fmt.Errorf("symbol id %q already used by %s", id, prev)}
			}
			ids[id] = f.Rel

			// Namespace declarations such as xmlns:xlink move to the store.
			for _, a := range svgRoot.Attr {
				if a.Space == "xmlns" && root.SelectAttr(a.FullKey()) == nil {
					root.CreateAttr(a.FullKey(), a.Value)
				}
			}

			sym := root.CreateElement("symbol")
			sym.CreateAttr("id", id)
			if vb := svgRoot.SelectAttrValue("viewBox", ""); vb != "" {
				sym.CreateAttr("viewBox", vb)
			}
			for _, child := range svgRoot.ChildElements() {
				sym.AddChild(child.Copy())
			}
		}

		root.CreateAttr("style", "display:none")

		data, err := doc.WriteToBytes()
		if err != nil {
			return nil, err
		}
		out := asset.New(name, data)
		out.Base = files[0].Base
		return []*asset.File{out}, nil
	})
}
