// Package textutil provides the text normalisation rules shared by the store,
// the ingest pipeline and the CLI.
//
// Event titles are compared after Unicode NFC normalisation and whitespace
// collapsing so the same headline extracted twice (possibly with different
// composed forms of CJK or accented characters) is recognised as a duplicate.
package textutil
