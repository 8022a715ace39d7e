package kb

import (
	"context"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// yamlSource reads a declared documentation list:
//
//	entries:
//	  - name: lib.strings.concatStrings
//	    description: Concatenate a list of strings.
//	    type: "[string] -> string"
type yamlSource struct{ base }

func (s *yamlSource) Fingerprint() (string, error) { return s.fingerprint([]string{s.path}) }

func (s *yamlSource) Build(ctx context.Context) ([]DocEntry, error) {
	data, err := s.readFile()
	if err != nil {
		return nil, err
	}
	var f declaredFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, s.malformed(err)
	}
	return s.declaredEntries(f), ctx.Err()
}

func (s *yamlSource) Marshal(entries []DocEntry) ([]byte, error) {
	return yaml.Marshal(blobFile{Entries: entries})
}

func (s *yamlSource) Unmarshal(data []byte) ([]DocEntry, error) {
	var f blobFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Entries, nil
}

// tomlSource reads the same list as an array of tables:
//
//	[[entries]]
//	name = "lib.strings.concatStrings"
//	description = "Concatenate a list of strings."
type tomlSource struct{ base }

func (s *tomlSource) Fingerprint() (string, error) { return s.fingerprint([]string{s.path}) }

func (s *tomlSource) Build(ctx context.Context) ([]DocEntry, error) {
	data, err := s.readFile()
	if err != nil {
		return nil, err
	}
	var f declaredFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, s.malformed(err)
	}
	return s.declaredEntries(f), ctx.Err()
}

func (s *tomlSource) Marshal(entries []DocEntry) ([]byte, error) {
	return toml.Marshal(blobFile{Entries: entries})
}

func (s *tomlSource) Unmarshal(data []byte) ([]DocEntry, error) {
	var f blobFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Entries, nil
}
