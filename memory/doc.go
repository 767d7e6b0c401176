// Package memory provides the address spaces the engine reads tables from:
// a fixed ROM region and a Space that sends every address outside the ROM
// to the loaded module memories.
package memory
