package codegen

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/dave/jennifer/jen"
)

// DocFile is the name of the generated package's documentation file.
const DocFile = "doc.go"

// RegistryJenny generates doc.go for the generated package: the package
// documentation listing every wrapped class, and the blank import that
// links the wrapper runtime. Its inputs are the headers of the package's
// wrappers.
type RegistryJenny struct {
	// Package is the name of the generated package.
	Package string
}

var _ ManyToOne[Header] = RegistryJenny{}

func (j RegistryJenny) JennyName() string { return "RegistryJenny" }

func (j RegistryJenny) Generate(headers ...Header) (*File, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(headers))
	names := make([]string, 0, len(headers))
	for _, h := range headers {
		if h.Class != "" && !seen[h.Class] {
			seen[h.Class] = true
			names = append(names, h.Class)
		}
	}
	sort.Strings(names)

	var doc strings.Builder
	fmt.Fprintf(&doc, "Package %s holds the generated script wrappers of:\n", j.Package)
	for _, n := range names {
		fmt.Fprintf(&doc, "\n  - %s", n)
	}

	f := jen.NewFile(j.Package)
	f.HeaderComment(generatedLine[len("// "):])
	f.PackageComment(doc.String())
	f.Anon(wrapperPkg)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", DocFile, err)
	}
	return &File{RelativePath: DocFile, Data: buf.Bytes()}, nil
}
