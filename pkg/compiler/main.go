// Package compiler translates programs in a small block-structured teaching
// language into 256-byte images for the machine in package cpu.
//
// Pipeline: source -> Lexer -> Parse (concrete syntax tree) -> Analyze (checked
// tree + symbol table) -> Generate (image with backpatched addresses)
//
// A source buffer may hold several programs, each ending with '$'. Compile
// runs them one after another; a program that fails a stage skips the rest
// of the pipeline without affecting the programs after it.
package compiler
