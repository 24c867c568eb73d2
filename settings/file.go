//go:build !tinygo

package settings

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileStore keeps settings in a YAML file. Keys missing from the file keep
// their default values.
type FileStore struct {
	Path string
}

func (f FileStore) Load() (Settings, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return defaultSettings, errors.Wrapf(err, "read settings %s", f.Path)
	}
	s, err := Decode(b)
	if err != nil {
		return defaultSettings, errors.Wrapf(err, "parse settings %s", f.Path)
	}
	return s, nil
}

func (f FileStore) Save(s Settings) error {
	fp, err := os.Create(f.Path)
	if err != nil {
		return errors.Wrapf(err, "create settings %s", f.Path)
	}
	if err := Encode(fp, s); err != nil {
		fp.Close()
		return err
	}
	return errors.Wrapf(fp.Close(), "close settings %s", f.Path)
}

// Decode overlays YAML onto the defaults and validates the result.
func Decode(b []byte) (Settings, error) {
	s := defaultSettings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return defaultSettings, errors.Wrap(err, "unmarshal")
	}
	if err := Validate(s); err != nil {
		return defaultSettings, err
	}
	return s, nil
}

func Encode(w io.Writer, s Settings) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return errors.Wrap(err, "marshal settings")
	}
	return errors.Wrap(enc.Close(), "flush settings")
}
