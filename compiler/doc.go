/*

Process of lowering

IR Text ->
	irtext.Parse ->
Intermediate Representation (ir) ->
	back.Emitter ->
Instructions (ins) in selection order ->
	back.Analyzer: blocks, edges, merge ->
Basic Blocks ->
	back.Analyzer: layout ->
Instructions (ins) in final order

Registers (regs) are not assigned here.
Instructions reference temporaries by ins.Ref.

*/
package compiler
