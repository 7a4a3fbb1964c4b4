// Package rcxfile reads and writes the native parasitics format, an
// s-expression file carrying nets, capacitance nodes and resistor segments
// with shape ids and coordinates.
//
// # Format
//
//	(parasitics
//	  (version 1)
//	  (corners 2)
//	  (foreign no)
//	  (rseg_coords yes)
//	  (net (name n1) (type signal) (terms 2)
//	    (capnode 1 (node 7) iterm)
//	    (capnode 2 (node 40))
//	    (capnode 3 (node 3) bterm)
//	    (termjid 7 101)
//	    (zero 1 (at 0 0) (gnd 0.5 0.6) (cc 0 0))
//	    (rseg 1 2 (shape 11) (at 10 0) (res 10 12) (gnd 2 2.2) (cc 0.5 0.5))
//	    (rseg 2 3 (shape 12) (at 20 0) (res 10 12) (gnd 2 2.2) (cc 0 0)))
//	  (corner_block 1 (corners 1) (net ...)))
//
// Capacitance node ids are local to their net. Values per corner follow the
// key in corner order; missing corners are zero. Segments are listed
// driver first. After loading, every non-terminal node touched by three or
// more segments is flagged as a branch point.
//
// A corner_block holds a separate block for one extraction corner. Its nets
// must be listed in the same order as in the main block so that net ids
// match.
package rcxfile
