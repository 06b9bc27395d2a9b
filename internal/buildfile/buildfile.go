// Package buildfile reads the build description: the output directory and
// the targets whose sources protoforge processes.
//
//	out: build
//	targets:
//	  - name: widgets
//	    sources: [widgets/shape.proto, widgets/main.cc]
//	    includes: [third_party]
package buildfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/efebarandurmaz/protoforge/internal/build"
)

// File is a parsed build description.
type File struct {
	Out     string   `yaml:"out,omitempty"`
	Targets []Target `yaml:"targets"`
}

// Target is one entry of the targets list.
type Target struct {
	Name     string   `yaml:"name"`
	Sources  []string `yaml:"sources"`
	Includes []string `yaml:"includes,omitempty"`
}

var targetName = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.\-/]*$`)

// Load reads and validates the build description at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading build file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a build description. Unknown fields are
// rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("build file is empty")
		}
		return nil, fmt.Errorf("parsing build file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks target names and sources.
func (f *File) Validate() error {
	if len(f.Targets) == 0 {
		return errors.New("no targets defined")
	}
	var errs []error
	names := make(map[string]bool)
	for i, t := range f.Targets {
		switch {
		case t.Name == "":
			errs = append(errs, fmt.Errorf("target %d has no name", i))
		case !targetName.MatchString(t.Name):
			errs = append(errs, fmt.Errorf("target %q has an invalid name", t.Name))
		case names[t.Name]:
			errs = append(errs, fmt.Errorf("target %q defined twice", t.Name))
		}
		names[t.Name] = true

		if len(t.Sources) == 0 {
			errs = append(errs, fmt.Errorf("target %q has no sources", t.Name))
		}
		for _, s := range t.Sources {
			if s == "" {
				errs = append(errs, fmt.Errorf("target %q has an empty source", t.Name))
			}
		}
	}
	return errors.Join(errs...)
}

// BuildTargets converts the description into build targets.
func (f *File) BuildTargets() []build.Target {
	out := make([]build.Target, len(f.Targets))
	for i, t := range f.Targets {
		out[i] = build.Target{Name: t.Name, Sources: t.Sources, Includes: t.Includes}
	}
	return out
}

// Marshal encodes f as YAML.
func Marshal(f *File) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes f to path. An existing file is only replaced when force
// is set.
func Write(path string, f *File, force bool) error {
	data, err := Marshal(f)
	if err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	out, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("writing build file: %w", err)
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return fmt.Errorf("writing build file: %w", err)
	}
	return out.Close()
}

// Scaffold describes every .proto file under srcRoot, one target per
// directory. Hidden directories and skip (typically the output tree) are
// not searched.
func Scaffold(srcRoot, skip string) (*File, error) {
	byDir := map[string][]string{}
	var dirs []string
	err := filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel != "." && (strings.HasPrefix(d.Name(), ".") || rel == filepath.Clean(skip)) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(rel) != ".proto" {
			return nil
		}
		dir := filepath.ToSlash(filepath.Dir(rel))
		if _, ok := byDir[dir]; !ok {
			dirs = append(dirs, dir)
		}
		byDir[dir] = append(byDir[dir], filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", srcRoot, err)
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no .proto files under %s", srcRoot)
	}

	sort.Strings(dirs)
	f := &File{Out: skip}
	for _, dir := range dirs {
		name := dir
		if name == "." {
			name = "protos"
		}
		f.Targets = append(f.Targets, Target{Name: name, Sources: byDir[dir]})
	}
	return f, nil
}
