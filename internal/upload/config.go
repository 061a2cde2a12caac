package upload

import (
	"maps"
	"sync"
)

// Config is the signed-policy material for a bucket. Policy and Signature are
// issued elsewhere; this package only places them in the form.
type Config struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"` // access key id
	ACL       string `json:"acl"`
	Policy    string `json:"policy"`
	Signature string `json:"signature"`
	Prefix    string `json:"prefix"`
	CDN       string `json:"cdn,omitempty"`
	Redirect  string `json:"redirect,omitempty"`
	// Fields are extra signed form fields, e.g. x-amz-meta-* or x-amz-security-token.
	Fields map[string]string `json:"fields,omitempty"`
}

// Clone returns a copy that shares nothing with c.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Fields = maps.Clone(c.Fields)
	return &out
}

// Defaults is a shared default Config. Sessions read it when no config is
// given and native sessions write theirs back, so later sessions inherit it.
// The last writer wins.
type Defaults struct {
	mu  sync.RWMutex
	cfg *Config
}

func NewDefaults(cfg *Config) *Defaults {
	return &Defaults{cfg: cfg.Clone()}
}

// Get returns a copy of the current default, or nil.
func (d *Defaults) Get() *Config {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg.Clone()
}

// Set stores a copy of cfg.
func (d *Defaults) Set(cfg *Config) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg.Clone()
}
