package spef

import "strings"

// File represents a parsed SPEF file
type File struct {
	Header     []*HeaderEntry  `@@*`
	NameMap    []*NameMapEntry `( "*NAME_MAP" @@* )?`
	PowerNets  []string        `( "*POWER_NETS" @( Index | Ident )* )?`
	GroundNets []string        `( "*GROUND_NETS" @( Index | Ident )* )?`
	Ports      []*Port         `( "*PORTS" @@* )?`
	Nets       []*DNet         `@@*`
}

// HeaderEntry represents one header line
// Example: *C_UNIT 1 PF
type HeaderEntry struct {
	Key    string   `@Keyword`
	Values []string `@( String | Number | Ident | Punct | Colon )*`
}

// NameMapEntry maps an index to a name
// Example: *1 u1/net_a
type NameMapEntry struct {
	Index string `@Index`
	Name  string `@( Ident | String )`
}

// Port represents a top-level port declaration
// Example: in1 I *C 0.0 10.0
type Port struct {
	Name  string      `@( Index | Ident )`
	Dir   string      `@Ident`
	Attrs []*ConnAttr `@@*`
}

// DNet represents a detailed net
type DNet struct {
	Name  string      `"*D_NET" @( Index | Ident )`
	Total float64     `@Number`
	Conns []*Conn     `( "*CONN" @@* )?`
	Caps  []*CapEntry `( "*CAP" @@* )?`
	Res   []*ResEntry `( "*RES" @@* )?`
	End   string      `@"*END"`
}

// Conn represents a connection of a detailed net
// Example: *I *2:A I *C 10 0 *L 0.01 *D INVX1
type Conn struct {
	Kind  string      `@( "*P" | "*I" | "*N" )`
	Node  *NodeName   `@@`
	Dir   string      `@Ident?`
	Attrs []*ConnAttr `@@*`
}

// ConnAttr represents an optional connection attribute
type ConnAttr struct {
	Coords *Coords  `  "*C" @@`
	Load   *float64 `| "*L" @Number`
	Cell   *string  `| "*D" @Ident`
}

// Coords represents an (x, y) location
type Coords struct {
	X float64 `@Number`
	Y float64 `@Number`
}

// NodeName represents a node reference, optionally with a pin
// Example: *1:3, u1:A, out1
type NodeName struct {
	Name string `@( Index | Ident )`
	Pin  string `( Colon @( Ident | Number | Index ) )?`
}

// String returns the node name in name:pin form
func (n *NodeName) String() string {
	if n.Pin == "" {
		return n.Name
	}
	return n.Name + ":" + n.Pin
}

// CapEntry represents a ground capacitance (one node) or a coupling
// capacitance (two nodes)
type CapEntry struct {
	ID    int       `@Number`
	Node  *NodeName `@@`
	Other *NodeName `@@?`
	Value float64   `@Number`
}

// ResEntry represents a resistor
type ResEntry struct {
	ID    int       `@Number`
	A     *NodeName `@@`
	B     *NodeName `@@`
	Value float64   `@Number`
}

// HeaderValues returns the values of a header keyword
func (f *File) HeaderValues(key string) ([]string, bool) {
	for _, h := range f.Header {
		if h.Key == key {
			return h.Values, true
		}
	}
	return nil, false
}

// NameMapping returns the index to name map
func (f *File) NameMapping() map[string]string {
	m := make(map[string]string, len(f.NameMap))
	for _, e := range f.NameMap {
		m[e.Index] = unquote(e.Name)
	}
	return m
}

// Coords returns the location of a connection, if given
func (c *Conn) Coords() (*Coords, bool) {
	for _, a := range c.Attrs {
		if a.Coords != nil {
			return a.Coords, true
		}
	}
	return nil, false
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
