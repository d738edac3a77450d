package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Document is the registry as stored on disk or in a bucket:
//
//	hosts:
//	  - id: hosta
//	    address: r66.example.com:6666
//	rules:
//	  - id: send
//	    comment: push to partner
type Document struct {
	Hosts []HostEntry `yaml:"hosts"`
	Rules []RuleEntry `yaml:"rules"`
}

// HostEntry is one known remote host.
type HostEntry struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address,omitempty"`
	Comment string `yaml:"comment,omitempty"`
}

// RuleEntry is one known transfer rule.
type RuleEntry struct {
	ID      string `yaml:"id"`
	Comment string `yaml:"comment,omitempty"`
}

// ParseDocument decodes a YAML registry.  Entries without an id are
// rejected.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	for i, h := range doc.Hosts {
		if h.ID == "" {
			return nil, fmt.Errorf("parse registry: hosts[%d] has no id", i)
		}
	}
	for i, r := range doc.Rules {
		if r.ID == "" {
			return nil, fmt.Errorf("parse registry: rules[%d] has no id", i)
		}
	}
	return &doc, nil
}

// HostIDs lists host ids in document order.
func (d *Document) HostIDs() []string {
	out := make([]string, 0, len(d.Hosts))
	for _, h := range d.Hosts {
		out = append(out, h.ID)
	}
	return out
}

// RuleIDs lists rule ids in document order.
func (d *Document) RuleIDs() []string {
	out := make([]string, 0, len(d.Rules))
	for _, r := range d.Rules {
		out = append(out, r.ID)
	}
	return out
}
