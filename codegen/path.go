package codegen

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"unicode"

	"github.com/sdboyer/esbean/jtype"
)

// FileSuffix ends the name of every generated wrapper file.
const FileSuffix = "_es.go"

// Mangle turns a qualified class name into a file name stem. Letters and
// digits are kept and every other character becomes an escape that starts
// with an underscore, so distinct class names give distinct stems:
//
//	_      __
//	/      _s
//	.      _d
//	-      _h
//	other  _x<hex code point>_
func Mangle(class string) string {
	var sb strings.Builder
	for _, r := range class {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
		case r == '_':
			sb.WriteString("__")
		case r == '/':
			sb.WriteString("_s")
		case r == '.':
			sb.WriteString("_d")
		case r == '-':
			sb.WriteString("_h")
		default:
			fmt.Fprintf(&sb, "_x%x_", r)
		}
	}
	return sb.String()
}

// FileName is the name of the wrapper file for class t.
func FileName(t jtype.Type) string {
	return Mangle(jtype.ClassOf(t).Name()) + FileSuffix
}

// Path is the path of the wrapper file for class t inside the generated
// package directory pkgDir.
func Path(pkgDir string, t jtype.Type) string {
	return path.Join(pkgDir, FileName(t))
}

// Ident is the Go identifier stem of the wrapper for class t: the last
// element of its package path and its name, then the first eight hex
// digits of the package path's sha256 to keep apart same-named classes of
// packages with the same last element. For example.com/shapes.Point it is
// ShapesPoint_086aab3a.
func Ident(t jtype.Type) string {
	cls := jtype.ClassOf(t)
	var sb strings.Builder
	p := cls.PkgPath()
	if p != "" {
		upper := true
		for _, r := range path.Base(p) {
			if r >= unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
				upper = true
				continue
			}
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			sb.WriteRune(r)
		}
	}
	name := cls.SimpleName()
	if name == "" {
		name = Mangle(cls.Name())
	}
	sb.WriteString(name)
	if p != "" {
		sum := sha256.Sum256([]byte(p))
		sb.WriteString("_" + hex.EncodeToString(sum[:4]))
	}
	id := sb.String()
	if !jtype.IsExported(id) {
		id = "X" + id
	}
	return id
}

// Header is the metadata a generated wrapper file starts with.
type Header struct {
	Class   string
	Version int
	Hash    string
}

const (
	generatedLine = "// Code generated by esbeangen. DO NOT EDIT."
	headerPrefix  = "// esbean:"
)

// ErrNoHeader means a file does not start with a wrapper header.
var ErrNoHeader = errors.New("no esbean header")

func (h Header) lines() []string {
	return []string{
		"Code generated by esbeangen. DO NOT EDIT.",
		"esbean:class " + h.Class,
		"esbean:version " + strconv.Itoa(h.Version),
		"esbean:hash " + h.Hash,
	}
}

// ReadHeader reads the header of the generated file at path.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	var (
		h     Header
		found bool
	)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == generatedLine {
			continue
		}
		rest, ok := strings.CutPrefix(line, headerPrefix)
		if !ok {
			break
		}
		key, val, _ := strings.Cut(rest, " ")
		switch key {
		case "class":
			h.Class = val
		case "version":
			if h.Version, err = strconv.Atoi(val); err != nil {
				return Header{}, fmt.Errorf("%s: bad version %q: %w", path, val, err)
			}
		case "hash":
			h.Hash = val
		}
		found = true
	}
	if err := sc.Err(); err != nil {
		return Header{}, fmt.Errorf("%s: %w", path, err)
	}
	if !found {
		return Header{}, fmt.Errorf("%s: %w", path, ErrNoHeader)
	}
	return h, nil
}
