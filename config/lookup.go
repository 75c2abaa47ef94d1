package config

import (
	"io/ioutil"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

const (
	TOKEN_WORD = iota
	TOKEN_NEWLINE
	TOKEN_COMMENT
)

var lookupLexer *lexmachine.Lexer

func init() {
	lookupLexer = lexmachine.NewLexer()
	lookupLexer.Add([]byte(`(\n|\r)+`), getToken(TOKEN_NEWLINE))
	lookupLexer.Add([]byte(`#[^\r\n]*`), getToken(TOKEN_COMMENT))
	lookupLexer.Add([]byte(`[ \t]+`), skip)
	lookupLexer.Add([]byte(`[^ \t\r\n#]+`), getToken(TOKEN_WORD))
}

func getToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, m.Bytes, m), nil
	}
}

func skip(scan *lexmachine.Scanner, match *machines.Match) (interface{}, error) {
	return nil, nil
}

// TextureLookup maps texture ids used by mesh materials to the asset names
// shipped with the game. Records are "<column> <id>.tga <name>", one per line.
type TextureLookup struct {
	names map[uint32]string
	ids   map[string]uint32
}

type TextureLookupEntry struct {
	ID   uint32 `yaml:"id"`
	Name string `yaml:"name"`
}

func ParseLookup(text []byte) (*TextureLookup, error) {
	scanner, err := lookupLexer.Scanner(text)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create lexer scanner")
	}

	tl := &TextureLookup{
		names: make(map[uint32]string),
		ids:   make(map[string]uint32),
	}

	var words []string
	line := 1
	flush := func() error {
		defer func() { words = words[:0] }()
		if len(words) == 0 {
			return nil
		}
		if len(words) < 3 {
			return errors.Errorf("Line %d: expected 3 fields, got %q", line, words)
		}
		tga := words[1]
		if !strings.HasSuffix(strings.ToLower(tga), ".tga") {
			return errors.Errorf("Line %d: %q is not a tga name", line, tga)
		}
		id, err := strconv.ParseUint(tga[:len(tga)-4], 10, 32)
		if err != nil {
			return errors.Wrapf(err, "Line %d: bad texture id %q", line, tga)
		}
		tl.names[uint32(id)] = words[2]
		tl.ids[words[2]] = uint32(id)
		return nil
	}

	for itok, err, eos := scanner.Next(); !eos; itok, err, eos = scanner.Next() {
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to parse token")
		}
		tok := itok.(*lexmachine.Token)

		switch tok.Type {
		case TOKEN_WORD:
			word, err := DecodeName(tok.Value.([]byte))
			if err != nil {
				return nil, errors.Wrapf(err, "Line %d", tok.StartLine)
			}
			words = append(words, word)
			line = tok.StartLine
		case TOKEN_NEWLINE:
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return tl, nil
}

// NiceName returns the asset name for id, falling back to the atlas dump
// name. Id 0 means no texture.
func (tl *TextureLookup) NiceName(id uint32) string {
	if id == 0 {
		return ""
	}
	if tl != nil {
		if name, ok := tl.names[id]; ok {
			return name
		}
	}
	return TriName(id)
}

func (tl *TextureLookup) ID(name string) (uint32, bool) {
	if tl == nil {
		return 0, false
	}
	id, ok := tl.ids[name]
	return id, ok
}

func (tl *TextureLookup) Len() int {
	if tl == nil {
		return 0
	}
	return len(tl.names)
}

func (tl *TextureLookup) Entries() []TextureLookupEntry {
	if tl == nil {
		return nil
	}
	entries := make([]TextureLookupEntry, 0, len(tl.names))
	for id, name := range tl.names {
		entries = append(entries, TextureLookupEntry{ID: id, Name: name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// TriName is the file name atlas entries are dumped under.
func TriName(id uint32) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(id), 10) + ".tga"
}

var (
	lookupOnce  sync.Once
	lookupTable *TextureLookup
	lookupErr   error
)

// LoadLookup reads the companion lookup file. Only the first call has an
// effect, later calls return its result.
func LoadLookup(path string) error {
	lookupOnce.Do(func() {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			lookupErr = errors.Wrapf(err, "Cannot read lookup file %q", path)
			return
		}
		lookupTable, lookupErr = ParseLookup(data)
		if lookupErr == nil {
			log.Printf("[config] Loaded %d texture names from %q", lookupTable.Len(), path)
		}
	})
	return lookupErr
}

// Lookup returns the loaded table. A nil table is valid and resolves every
// id to its atlas dump name.
func Lookup() *TextureLookup {
	return lookupTable
}
