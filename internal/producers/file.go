package producers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"fip/internal/finding"
)

// Extensions probed by DiscoverFileProducers, in order.
var findingsExtensions = []string{".json", ".yaml", ".yml"}

// FileProducer replays findings written by an external analyzer to a JSON
// or YAML document. The document is either a list of findings or an object
// with a "findings" list.
type FileProducer struct {
	name finding.Producer
	path string
}

// NewFileProducer creates a producer named name that reads path. A relative
// path is resolved against the request root.
func NewFileProducer(name finding.Producer, path string) *FileProducer {
	return &FileProducer{name: name, path: path}
}

// DiscoverFileProducers returns a FileProducer for every known producer with
// a findings document <dir>/<producer>.{json,yaml,yml}.
func DiscoverFileProducers(dir string) []*FileProducer {
	var out []*FileProducer
	for _, name := range finding.Producers {
		for _, ext := range findingsExtensions {
			path := filepath.Join(dir, string(name)+ext)
			if _, err := os.Stat(path); err == nil {
				out = append(out, NewFileProducer(name, path))
				break
			}
		}
	}
	return out
}

// Name implements Producer.
func (p *FileProducer) Name() finding.Producer {
	return p.name
}

// Path returns the findings document path.
func (p *FileProducer) Path() string {
	return p.path
}

// Produce implements Producer. A missing document yields no findings.
// Findings without a producer are attributed to this one; findings naming
// a different producer are rejected.
func (p *FileProducer) Produce(ctx context.Context, req Request) ([]finding.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := p.path
	if !filepath.IsAbs(path) && req.Root != "" {
		path = filepath.Join(req.Root, path)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read findings: %w", err)
	}

	all, err := decodeFindings(path, data)
	if err != nil {
		return nil, fmt.Errorf("decode findings %s: %w", path, err)
	}

	var out []finding.Finding
	for _, f := range all {
		if f.Producer == "" {
			f.Producer = p.name
		}
		if f.Producer != p.name {
			return nil, fmt.Errorf("findings %s: finding %q names producer %q", path, f.ID, f.Producer)
		}
		f.Location.File = filepath.ToSlash(f.Location.File)
		if req.wants(f.Location.File) {
			out = append(out, f)
		}
	}
	return out, nil
}

type findingsDocument struct {
	Findings []finding.Finding `json:"findings" yaml:"findings"`
}

func decodeFindings(path string, data []byte) ([]finding.Finding, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var list []finding.Finding
		if err := yaml.Unmarshal(trimmed, &list); err == nil {
			return list, nil
		}
		var doc findingsDocument
		if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		return doc.Findings, nil
	}

	if trimmed[0] == '[' {
		var list []finding.Finding
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var doc findingsDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return doc.Findings, nil
}
