// Package spef reads the subset of the Standard Parasitic Exchange Format
// needed to build RC trees: header units, the name map, power and ground
// net lists, ports, and detailed nets (*D_NET) with their connections,
// capacitances and resistors.
//
// # Usage
//
//	p, err := spef.NewParser()
//	if err != nil {
//		return err
//	}
//	f, err := p.ParseFile("design.spef")
//	if err != nil {
//		return err
//	}
//	db, err := spef.Build(f, spef.BuildOptions{})
//
// The resulting database is flagged as foreign extraction: segments have
// no shape ids, and coordinates are present only when the file gives *C
// locations. Port connections become block terminals and instance pin
// connections become instance terminals.
//
// Reduced nets (*R_NET), inductance and triplet values are not supported.
package spef
