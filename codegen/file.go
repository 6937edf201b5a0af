package codegen

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// File is a single generated file.
type File struct {
	// The relative path to which the generated file should be written.
	RelativePath string

	// Contents of the generated file.
	Data []byte

	// From is the stack of jennies responsible for producing this File.
	// JennyList fills it in.
	From []NamedJenny
}

// Exists reports whether the File has a path and contents.
func (f File) Exists() bool {
	return f.RelativePath != "" && len(f.Data) > 0
}

// Validate checks that the File has a relative path and contents.
func (f File) Validate() error {
	var result *multierror.Error
	if f.RelativePath == "" {
		result = multierror.Append(result, fmt.Errorf("file from %s has no path", jennystack(f.From)))
	} else if filepath.IsAbs(f.RelativePath) {
		result = multierror.Append(result, fmt.Errorf("%s: path from %s must be relative", f.RelativePath, jennystack(f.From)))
	}
	if len(f.Data) == 0 {
		result = multierror.Append(result, fmt.Errorf("%s: file from %s is empty", f.RelativePath, jennystack(f.From)))
	}
	return result.ErrorOrNil()
}

// Files is a set of File objects. It is valid when every File is valid and
// no two share a path.
type Files []File

// Validate checks every File and the uniqueness of their paths.
func (fl Files) Validate() error {
	var result *multierror.Error
	seen := make(map[string]File, len(fl))
	for _, f := range fl {
		if err := f.Validate(); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if prev, has := seen[f.RelativePath]; has {
			result = multierror.Append(result, fmt.Errorf("%s: created by both %s and %s", f.RelativePath, jennystack(prev.From), jennystack(f.From)))
			continue
		}
		seen[f.RelativePath] = f
	}
	return result.ErrorOrNil()
}

// FileMapper transforms a File. JennyList runs its FileMappers on every File
// its jennies produce.
type FileMapper func(File) (File, error)

// Prefixer returns a FileMapper that places files under the directory
// prefix.
func Prefixer(prefix string) FileMapper {
	return func(f File) (File, error) {
		f.RelativePath = path.Join(prefix, f.RelativePath)
		return f, nil
	}
}

func jennystack(from []NamedJenny) string {
	if len(from) == 0 {
		return "<unknown>"
	}
	names := make([]string, len(from))
	for i, j := range from {
		names[i] = j.JennyName()
	}
	return strings.Join(names, ":")
}
