// Package signature builds the canonical digest of a report and signs or
// verifies it with RSA-PSS/SHA-256.
//
// The digest is computed over a fixed projection of the report. The
// projection is marshalled to JSON, re-read token by token into an ordered
// tree, and walked depth first: object members in document order (which is
// struct field declaration order), array elements in index order. Every
// non-null, non-empty scalar becomes a leaf with a bracket-notation path such
// as $['monthlyReports'][0]['highestBalance']. The plaintext is the leaf
// values, each followed by ";".
package signature

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"cashflow/internal/core"
)

// ErrPathNotFound is returned when a stored path no longer resolves to a
// scalar in the document.
var ErrPathNotFound = errors.New("path not found")

// Projection is the signable subset of a report. Identifiers assigned after
// calculation and the creation timestamp are not part of it.
type Projection struct {
	UserID                string              `json:"userId"`
	IBAN                  string              `json:"iban,omitempty"`
	BBAN                  string              `json:"bban,omitempty"`
	MaskedPan             string              `json:"maskedPan,omitempty"`
	SortCodeAccountNumber string              `json:"sortCodeAccountNumber,omitempty"`
	InitialBalance        string              `json:"initialBalance"`
	LastDataFetchTime     string              `json:"lastDataFetchTime,omitempty"`
	Currency              string              `json:"currency,omitempty"`
	NewestTransactionDate string              `json:"newestTransactionDate,omitempty"`
	OldestTransactionDate string              `json:"oldestTransactionDate,omitempty"`
	CreditLimit           *string             `json:"creditLimit,omitempty"`
	TransactionsSize      int                 `json:"transactionsSize"`
	AccountHolder         string              `json:"accountHolder,omitempty"`
	MonthlyReports        []MonthlyProjection `json:"monthlyReports,omitempty"`
}

type MonthlyProjection struct {
	Year               int                  `json:"year"`
	Month              int                  `json:"month"`
	HighestBalance     string               `json:"highestBalance"`
	LowestBalance      string               `json:"lowestBalance"`
	AverageBalance     string               `json:"averageBalance"`
	CategorizedAmounts []CategoryProjection `json:"categorizedAmounts,omitempty"`
	IncomingCount      int                  `json:"incomingCount"`
	OutgoingCount      int                  `json:"outgoingCount"`
}

type CategoryProjection struct {
	Category         string `json:"category"`
	Amount           string `json:"amount"`
	TransactionCount int    `json:"transactionCount"`
}

// NewProjection extracts the signable fields of r. Amounts keep their exact
// scale as strings so that no float conversion takes place.
func NewProjection(r core.Report) Projection {
	p := Projection{
		UserID:                r.UserID.String(),
		IBAN:                  r.Account.IBAN,
		BBAN:                  r.Account.BBAN,
		MaskedPan:             r.Account.MaskedPan,
		SortCodeAccountNumber: r.Account.SortCodeAccountNumber,
		InitialBalance:        r.InitialBalance.String(),
		LastDataFetchTime:     formatTime(r.LastDataFetchTime, time.RFC3339Nano),
		Currency:              r.Currency,
		NewestTransactionDate: formatTime(r.NewestTransactionDate, core.DateLayout),
		OldestTransactionDate: formatTime(r.OldestTransactionDate, core.DateLayout),
		TransactionsSize:      r.TransactionsSize,
		AccountHolder:         r.AccountHolder,
	}
	if r.CreditLimit != nil {
		s := r.CreditLimit.String()
		p.CreditLimit = &s
	}
	for _, m := range r.Monthly {
		mp := MonthlyProjection{
			Year:           m.Year,
			Month:          int(m.Month),
			HighestBalance: m.HighestBalance.String(),
			LowestBalance:  m.LowestBalance.String(),
			AverageBalance: m.AverageBalance.String(),
			IncomingCount:  m.IncomingCount,
			OutgoingCount:  m.OutgoingCount,
		}
		for _, ca := range m.CategorizedAmounts {
			mp.CategorizedAmounts = append(mp.CategorizedAmounts, CategoryProjection{
				Category:         string(ca.Category),
				Amount:           ca.Amount.String(),
				TransactionCount: ca.TransactionCount,
			})
		}
		p.MonthlyReports = append(p.MonthlyReports, mp)
	}
	return p
}

func formatTime(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(layout)
}

// Leaf is one scalar of the document and the path that reaches it.
type Leaf struct {
	Path  string
	Value string
}

type nodeKind int

const (
	scalarNode nodeKind = iota
	objectNode
	arrayNode
)

type member struct {
	key   string
	value *node
}

type node struct {
	kind    nodeKind
	scalar  string
	null    bool
	members []member
	items   []*node
}

// Document is the ordered tree of a marshalled projection.
type Document struct {
	root *node
}

// NewDocument marshals p and reads it back into an ordered tree.
func NewDocument(p Projection) (*Document, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal projection: %w", err)
	}
	return ParseDocument(data)
}

// ParseDocument reads a JSON document keeping member order.
func ParseDocument(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := readNode(dec)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("parse document: trailing data")
	}
	return &Document{root: root}, nil
}

func readNode(dec *json.Decoder) (*node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			n := &node{kind: objectNode}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				child, err := readNode(dec)
				if err != nil {
					return nil, err
				}
				n.members = append(n.members, member{key: key, value: child})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := &node{kind: arrayNode}
			for dec.More() {
				child, err := readNode(dec)
				if err != nil {
					return nil, err
				}
				n.items = append(n.items, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", v)
		}
	case string:
		return &node{kind: scalarNode, scalar: v}, nil
	case json.Number:
		return &node{kind: scalarNode, scalar: v.String()}, nil
	case bool:
		return &node{kind: scalarNode, scalar: strconv.FormatBool(v)}, nil
	case nil:
		return &node{kind: scalarNode, null: true}, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

// Leaves walks the document depth first and returns every non-null,
// non-empty scalar.
func (d *Document) Leaves() []Leaf {
	var out []Leaf
	walk(d.root, "$", &out)
	return out
}

func walk(n *node, path string, out *[]Leaf) {
	switch n.kind {
	case objectNode:
		for _, m := range n.members {
			walk(m.value, path+"["+quoteKey(m.key)+"]", out)
		}
	case arrayNode:
		for i, item := range n.items {
			walk(item, path+"["+strconv.Itoa(i)+"]", out)
		}
	default:
		if n.null || n.scalar == "" {
			return
		}
		*out = append(*out, Leaf{Path: path, Value: n.scalar})
	}
}

// Paths returns the paths of leaves in order.
func Paths(leaves []Leaf) []string {
	out := make([]string, len(leaves))
	for i, l := range leaves {
		out[i] = l.Path
	}
	return out
}

// Plaintext concatenates the leaf values, each terminated by ";".
func Plaintext(leaves []Leaf) []byte {
	var b bytes.Buffer
	for _, l := range leaves {
		b.WriteString(l.Value)
		b.WriteByte(';')
	}
	return b.Bytes()
}

// PlaintextAt rebuilds the plaintext from the values at exactly the given
// paths. A path that does not resolve to a non-null scalar yields
// ErrPathNotFound.
func (d *Document) PlaintextAt(paths []string) ([]byte, error) {
	var b bytes.Buffer
	for _, p := range paths {
		v, err := d.Read(p)
		if err != nil {
			return nil, err
		}
		b.WriteString(v)
		b.WriteByte(';')
	}
	return b.Bytes(), nil
}

// Read returns the scalar at path.
func (d *Document) Read(path string) (string, error) {
	segs, err := parsePath(path)
	if err != nil {
		return "", err
	}
	n := d.root
	for _, s := range segs {
		n = s.step(n)
		if n == nil {
			return "", fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
	}
	if n.kind != scalarNode || n.null {
		return "", fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	return n.scalar, nil
}

type segment struct {
	key   string
	index int
	isKey bool
}

func (s segment) step(n *node) *node {
	if s.isKey {
		if n.kind != objectNode {
			return nil
		}
		for _, m := range n.members {
			if m.key == s.key {
				return m.value
			}
		}
		return nil
	}
	if n.kind != arrayNode || s.index >= len(n.items) {
		return nil
	}
	return n.items[s.index]
}

func quoteKey(k string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(k) + "'"
}

// parsePath accepts the bracket notation produced by Leaves.
func parsePath(path string) ([]segment, error) {
	if !strings.HasPrefix(path, "$") {
		return nil, fmt.Errorf("invalid path %q", path)
	}
	var segs []segment
	rest := path[1:]
	for len(rest) > 0 {
		if rest[0] != '[' || len(rest) < 3 {
			return nil, fmt.Errorf("invalid path %q", path)
		}
		rest = rest[1:]
		if rest[0] == '\'' {
			var key strings.Builder
			i := 1
			for ; i < len(rest); i++ {
				c := rest[i]
				if c == '\\' && i+1 < len(rest) {
					i++
					key.WriteByte(rest[i])
					continue
				}
				if c == '\'' {
					break
				}
				key.WriteByte(c)
			}
			if i+1 >= len(rest) || rest[i] != '\'' || rest[i+1] != ']' {
				return nil, fmt.Errorf("invalid path %q", path)
			}
			segs = append(segs, segment{key: key.String(), isKey: true})
			rest = rest[i+2:]
			continue
		}
		end := strings.IndexByte(rest, ']')
		if end < 1 {
			return nil, fmt.Errorf("invalid path %q", path)
		}
		idx, err := strconv.Atoi(rest[:end])
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid path %q", path)
		}
		segs = append(segs, segment{index: idx})
		rest = rest[end+1:]
	}
	return segs, nil
}
