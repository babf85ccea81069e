// Package dag is a small directed graph keyed by string IDs. The assembler
// uses it to check sequence nesting, InputTag consumption between modules and
// configuration file loads for cycles, and to order nodes topologically.
package dag
