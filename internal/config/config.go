package config

import (
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Config is the immutable runtime configuration. It is loaded once at
// startup and passed into the components that need it; nothing mutates
// it afterwards.
type Config struct {
	// ListenAddr is the address the HTTP API binds to.
	ListenAddr string `yaml:"listen_addr"`

	// WorkDir holds uploaded statements, the working records CSV and
	// the ingestion results file.
	WorkDir string `yaml:"work_dir"`

	Store struct {
		// Path is the SQLite database file.
		Path string `yaml:"path"`
		// Table is the destination table for transaction rows.
		Table string `yaml:"table"`
	} `yaml:"store"`

	Model struct {
		// Path is the serialized classifier artifact.
		Path string `yaml:"path"`
		// Corpus is the labeled training corpus used to build the
		// artifact (one "label<TAB>reference" pair per line).
		Corpus string `yaml:"corpus"`
	} `yaml:"model"`

	Markers struct {
		// Start and End delimit the transaction region of a statement.
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"markers"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.ListenAddr = ":8080"
	c.WorkDir = "work"
	c.Store.Path = "work/transactions.db"
	c.Store.Table = "transactions"
	c.Model.Path = "ml/classifier.gob"
	c.Model.Corpus = "ml/corpus.tsv"
	c.Markers.Start = "SOLDE PRECEDENT"
	c.Markers.End = "NOUVEAU SOLDE"
	return c
}

// Load reads a YAML configuration file, filling unset fields from the
// defaults.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrapf(err, "parsing config %s", path)
	}
	return c, nil
}
